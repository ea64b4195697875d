package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/fieldnav/internal/adapters/filestore"
	"github.com/samirrijal/fieldnav/internal/adapters/postgres"
	"github.com/samirrijal/fieldnav/internal/adapters/s3store"
	"github.com/samirrijal/fieldnav/internal/adapters/sqlite"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/config"
)

// backend is the configured document store plus its lifecycle hooks.
type backend struct {
	name  string
	docs  ports.DocumentStore
	ping  func(ctx context.Context) error
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		fs, err := filestore.New(cfg.Store.Path, logger)
		if err != nil {
			return nil, err
		}
		return &backend{name: "file", docs: fs, ping: fs.Ping, close: func() {}}, nil

	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		ds := postgres.NewDocumentStore(db, cfg.Store.Document)
		if err := ds.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		statsCtx, stop := context.WithCancel(ctx)
		go db.ReportPoolStats(statsCtx, 15*time.Second)
		return &backend{name: "postgres", docs: ds, ping: db.Ping, close: func() {
			stop()
			db.Close()
		}}, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLite.Path, cfg.Store.Document)
		if err != nil {
			return nil, err
		}
		return &backend{name: "sqlite", docs: st, ping: st.Ping, close: func() { _ = st.Close() }}, nil

	case config.DriverS3:
		st, err := s3store.New(ctx, s3store.Config{
			Bucket:   cfg.S3.Bucket,
			Key:      cfg.S3.Key,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return &backend{name: "s3", docs: st, ping: st.Ping, close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
