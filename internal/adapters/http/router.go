package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
)

const requestTimeout = 10 * time.Second

// Options tunes the middleware stack.
type Options struct {
	RateLimit int // requests per minute per IP; 0 disables limiting
	Logger    *slog.Logger
	DocsPath  string // OpenAPI document served at /docs/openapi.yaml
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, opts Options) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(opts.Logger))
	app.Use(AccessLogMiddleware())

	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/health", HealthHandler(deps))
	app.Get("/ready", ReadyHandler(deps))

	api := app.Group("/api")
	api.Get("/customers", timeout.NewWithContext(ListCustomersHandler(deps), requestTimeout))
	api.Get("/customers/export.xlsx", timeout.NewWithContext(ExportCustomersHandler(deps), requestTimeout))
	api.Get("/customers/:id", timeout.NewWithContext(GetCustomerHandler(deps), requestTimeout))
	api.Post("/customers", timeout.NewWithContext(CreateCustomerHandler(deps), requestTimeout))
	api.Put("/customers", timeout.NewWithContext(UpdateCustomerHandler(deps), requestTimeout))
	api.Delete("/customers", timeout.NewWithContext(DeleteCustomerHandler(deps), requestTimeout))
	api.Post("/positions", timeout.NewWithContext(ReportPositionHandler(deps), requestTimeout))
	api.Get("/map", MapHandler(deps))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app, opts.DocsPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
