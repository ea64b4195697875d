package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/samirrijal/fieldnav/internal/adapters/osrm"
	"github.com/samirrijal/fieldnav/internal/adapters/registryclient"
	"github.com/samirrijal/fieldnav/internal/adapters/straightline"
	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/config"
	"github.com/samirrijal/fieldnav/internal/pkg/logging"
)

// app is the per-invocation wiring shared by the subcommands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	directory *registryclient.Client
	router    ports.RoutingCapability
}

func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load("fieldnav-navigator")
	if err != nil {
		return nil, err
	}
	if flags.registry != "" {
		cfg.Navigator.RegistryURL = flags.registry
	}
	if flags.agent != "" {
		cfg.Navigator.AgentID = flags.agent
	}
	if flags.router != "" {
		cfg.Routing.Provider = flags.router
	}

	format := "text"
	if flags.logJSON {
		format = "json"
	}
	logger := logging.New(cmd.ErrOrStderr(), flags.logLevel, format)

	router, err := newRouter(cfg.Routing)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		directory: registryclient.New(cfg.Navigator.RegistryURL, cfg.Navigator.Timeout, nil),
		router:    router,
	}, nil
}

func newRouter(cfg config.RoutingConfig) (ports.RoutingCapability, error) {
	switch cfg.Provider {
	case config.RoutingOSRM:
		return osrm.New(cfg.OSRMURL, cfg.Profile, cfg.Timeout), nil
	case config.RoutingStraightLine:
		return straightline.New(cfg.SpeedKMH), nil
	default:
		return nil, fmt.Errorf("unknown routing provider %q", cfg.Provider)
	}
}

// newSession builds a session over the app's registry and router. positions
// may be nil.
func (a *app) newSession(display navigation.Display, positions ports.PositionSource) (*navigation.Session, error) {
	m := a.cfg.Map
	return navigation.NewSession(navigation.Config{
		Directory: a.directory,
		Router:    a.router,
		Positions: positions,
		Display:   display,
		Viewport: navigation.ViewportConfig{
			Bounds:  m.Bounds,
			MinZoom: m.MinZoom,
			MaxZoom: m.MaxZoom,
			Width:   m.ScreenWidth,
			Height:  m.ScreenHeight,
		},
		TrackingZoom: m.TrackingZoom,
		Logger:       a.logger,
	})
}

// parseLatLon reads "lat,lon".
func parseLatLon(s string) (domain.GeoPoint, error) {
	latText, lonText, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, fmt.Errorf("position %q: expected lat,lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("position %q: bad latitude", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("position %q: bad longitude", s)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return domain.GeoPoint{}, fmt.Errorf("position %q: out of range", s)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

// fixedPosition is a one-report source standing in for the device.
func fixedPosition(agent string, p domain.GeoPoint) navigation.StaticSource {
	if agent == "" {
		agent = "terminal"
	}
	return navigation.StaticSource{Positions: []domain.Position{{
		AgentID:   agent,
		Latitude:  p.Lat,
		Longitude: p.Lon,
		Timestamp: time.Now().UTC(),
	}}}
}
