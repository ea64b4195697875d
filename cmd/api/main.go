package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldnav/internal/adapters/http"
	natsadapter "github.com/samirrijal/fieldnav/internal/adapters/nats"
	"github.com/samirrijal/fieldnav/internal/adapters/valkey"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/core/registry"
	"github.com/samirrijal/fieldnav/internal/core/usecases"
	"github.com/samirrijal/fieldnav/internal/pkg/config"
	"github.com/samirrijal/fieldnav/internal/pkg/logging"
	"github.com/samirrijal/fieldnav/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("fieldnav-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(logging.LevelFromEnv("info"), "json")
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Durable document
	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer backend.close()

	store, err := registry.Open(ctx, backend.docs, logger)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	if cfg.Store.SeedDemo {
		n, err := store.SeedIfEmpty(ctx, registry.DemoCustomers())
		if err != nil {
			log.Fatalf("seed demo customers: %v", err)
		}
		if n > 0 {
			logger.Info("seeded demo customers", "count", n)
		}
	}

	checks := []http.ReadinessCheck{{Name: backend.name, Ping: backend.ping}}

	// Cache. Interfaces are only assigned when the adapter exists so that a
	// nil adapter never becomes a non-nil interface.
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr, "fieldnav:")
		if err != nil {
			logger.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
			checks = append(checks, http.ReadinessCheck{Name: "cache", Optional: true, Ping: c.Ping})
		}
	}

	// NATS
	var events ports.EventPublisher
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			events = pub
			checks = append(checks, http.ReadinessCheck{Name: "nats", Optional: true, Ping: func(context.Context) error {
				if !pub.Connected() {
					return nats.ErrDisconnected
				}
				return nil
			}})
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			logger.Warn("nats ws conn unavailable", "error", err)
		} else {
			defer natsConn.Close()
		}
	}

	deps := &http.Dependencies{
		Customers: usecases.NewCustomerService(store, cache, events, logger),
		Positions: usecases.NewPositionService(events),
		Map:       cfg.Map,
		NATS:      natsConn,
		Checks:    checks,
		Version:   version,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "FieldNav API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.CORSOrigins, ", "),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Location, Retry-After",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps, http.Options{
		RateLimit: cfg.Server.RateLimit,
		Logger:    logger,
	})

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("API server starting", "addr", addr, "store", backend.name, "customers", len(store.List()))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}

	logger.Info("server stopped")
}
