package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldnav/internal/core/usecases"
	"github.com/samirrijal/fieldnav/internal/pkg/config"
)

// ReadinessCheck probes one backing service for /ready. A failing optional
// check is reported but does not make the instance unready.
type ReadinessCheck struct {
	Name     string
	Optional bool
	Ping     func(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Customers *usecases.CustomerService
	Positions *usecases.PositionService
	Map       config.MapConfig
	NATS      *nats.Conn // WebSocket relay; nil disables /ws subscriptions
	Checks    []ReadinessCheck
	Version   string
}
