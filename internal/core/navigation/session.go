// Package navigation holds the client-side navigation session: waypoint
// resolution, live position tracking, route recomputation and the bounded
// map viewport it drives.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
)

// State is a session lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateRecordsLoaded
	StateRouteResolved
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecordsLoaded:
		return "records_loaded"
	case StateRouteResolved:
		return "route_resolved"
	case StateTracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TrackOptions control what a position update does besides moving the
// device marker.
type TrackOptions struct {
	RouteMode bool // recompute the route on every update
	Follow    bool // recenter the viewport on every update
}

// Config wires a Session to its collaborators. Router, Positions and
// Display may be nil.
type Config struct {
	Directory    ports.CustomerDirectory
	Router       ports.RoutingCapability
	Positions    ports.PositionSource
	Display      Display
	Viewport     ViewportConfig
	TrackingZoom int
	Logger       *slog.Logger
}

// Session resolves a typed list of customer ids into an ordered route and
// keeps it in sync with the device position.
//
// Load, SetRoute and Recenter run synchronously. While tracking, position
// updates are applied in arrival order by one goroutine and route
// computations are latest-wins: a newer request supersedes the one in
// flight, whose result is discarded.
type Session struct {
	id           string
	directory    ports.CustomerDirectory
	router       ports.RoutingCapability
	positions    ports.PositionSource
	display      Display
	trackingZoom int
	logger       *slog.Logger

	// drawMu orders route drawing against Load and StopTracking: a route
	// passes its generation check and is drawn while holding it. Taken
	// before mu, never while holding mu.
	drawMu sync.Mutex

	mu        sync.Mutex
	state     State
	records   []domain.Customer
	requested []int64
	waypoints []domain.Customer
	position  *domain.Position
	route     *domain.Path
	viewport  *Viewport
	opts      TrackOptions

	trackCtx    context.Context
	stopTrack   context.CancelFunc
	trackGen    uint64
	routeGen    uint64
	cancelRoute context.CancelFunc

	wg sync.WaitGroup
}

// NewSession creates an idle session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Directory == nil {
		return nil, errors.New("navigation: directory is required")
	}
	vp, err := NewViewport(cfg.Viewport)
	if err != nil {
		return nil, err
	}
	if cfg.Display == nil {
		cfg.Display = NopDisplay{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TrackingZoom == 0 {
		cfg.TrackingZoom = cfg.Viewport.MaxZoom
	}

	id := uuid.NewString()
	return &Session{
		id:           id,
		directory:    cfg.Directory,
		router:       cfg.Router,
		positions:    cfg.Positions,
		display:      cfg.Display,
		trackingZoom: cfg.TrackingZoom,
		logger:       cfg.Logger.With("session", id),
		viewport:     vp,
	}, nil
}

// Load fetches the customer set. Calling it again is an explicit reload: it
// stops tracking and clears the resolved route. On failure the session keeps
// its previous state and the error wraps domain.ErrRecordsUnavailable.
func (s *Session) Load(ctx context.Context) error {
	records, err := s.directory.ListCustomers(ctx)
	if err != nil {
		s.logger.Warn("load customers", "error", err)
		s.display.Notify(Notice{Kind: NoticeRecordsUnavailable, Message: "customers could not be loaded, try again"})
		return fmt.Errorf("%w: %w", domain.ErrRecordsUnavailable, err)
	}

	s.drawMu.Lock()
	defer s.drawMu.Unlock()

	s.mu.Lock()
	s.stopLocked()
	s.records = slices.Clone(records)
	s.requested = nil
	s.waypoints = nil
	s.route = nil
	s.state = StateRecordsLoaded
	markers := customerMarkers(s.records)
	view := s.viewport.View()
	s.mu.Unlock()

	s.logger.Info("customers loaded", "count", len(records))
	s.display.ShowRoute(nil)
	s.display.ShowMarkers(markers)
	s.display.ShowView(view)
	return nil
}

// SetRoute resolves text against the loaded customers. While tracking, the
// new waypoints replace the old ones and a recompute is requested.
func (s *Session) SetRoute(text string) ([]domain.Customer, error) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil, domain.ErrRecordsNotLoaded
	}

	ids := ParseWaypointQuery(text, customerIDs(s.records))
	if len(ids) == 0 {
		s.mu.Unlock()
		return nil, domain.ErrNoValidWaypoints
	}

	s.requested = requestedIDs(text)
	s.waypoints = resolve(ids, s.records)
	if s.state == StateRecordsLoaded {
		s.state = StateRouteResolved
	}
	tracking := s.state == StateTracking
	markers := routeMarkers(s.waypoints, s.position != nil)
	waypoints := slices.Clone(s.waypoints)
	s.mu.Unlock()

	s.logger.Info("route set", "waypoints", ids)
	s.display.ShowMarkers(markers)
	if tracking {
		s.requestRoute()
	}
	return waypoints, nil
}

// StartTracking follows the device along the resolved route until
// StopTracking, Load or Close, or until ctx is done. Without a position
// source the session still tracks the route and emits a notice.
func (s *Session) StartTracking(ctx context.Context, opts TrackOptions) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateRecordsLoaded:
		s.mu.Unlock()
		return domain.ErrRouteNotSet
	case StateTracking:
		s.opts = opts
		s.mu.Unlock()
		return nil
	}

	trackCtx, cancel := context.WithCancel(ctx)
	s.trackCtx, s.stopTrack = trackCtx, cancel
	s.trackGen++
	gen := s.trackGen
	s.opts = opts
	s.state = StateTracking
	s.wg.Add(1)
	go s.stopWhenDone(trackCtx, gen)
	s.mu.Unlock()

	var updates <-chan domain.Position
	err := domain.ErrGeolocationUnavailable
	if s.positions != nil {
		updates, err = s.positions.Watch(trackCtx)
	}
	if err != nil {
		s.logger.Warn("position source unavailable", "error", err)
		s.display.Notify(Notice{Kind: NoticeGeolocationUnavailable, Message: "geolocation is not available, showing the route without your position"})
		updates = nil
	}

	s.requestRoute()

	if updates != nil {
		s.mu.Lock()
		if s.state == StateTracking && s.trackGen == gen {
			s.wg.Add(1)
			go s.consume(trackCtx, gen, updates)
		}
		s.mu.Unlock()
	}
	return nil
}

// StopTracking halts position handling and route computation. A route
// computation still in flight is discarded when it returns.
func (s *Session) StopTracking() {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}

// stopWhenDone leaves Tracking when the context passed to StartTracking
// ends, so a later StartTracking can begin a fresh generation.
func (s *Session) stopWhenDone(ctx context.Context, gen uint64) {
	defer s.wg.Done()
	<-ctx.Done()

	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	s.mu.Lock()
	if s.state == StateTracking && s.trackGen == gen {
		s.stopLocked()
	}
	s.mu.Unlock()
}

// Close stops tracking and waits for the tracking goroutines to exit.
func (s *Session) Close() {
	s.StopTracking()
	s.wg.Wait()
}

// Recenter moves the viewport to the device position at the tracking zoom.
// Without a position it reports domain.ErrPositionUnavailable and leaves the
// viewport untouched.
func (s *Session) Recenter() (View, error) {
	s.mu.Lock()
	if s.position == nil {
		view := s.viewport.View()
		s.mu.Unlock()
		s.display.Notify(Notice{Kind: NoticePositionUnavailable, Message: domain.ErrPositionUnavailable.Error()})
		return view, domain.ErrPositionUnavailable
	}
	view := s.viewport.Recenter(s.position.Point(), s.trackingZoom)
	s.mu.Unlock()

	s.display.ShowView(view)
	return view, nil
}

// Pan shifts the viewport by screen pixels, within the bounding box.
func (s *Session) Pan(dx, dy float64) View {
	s.mu.Lock()
	view := s.viewport.Pan(dx, dy)
	s.mu.Unlock()
	s.display.ShowView(view)
	return view
}

// Zoom changes the zoom level, within the configured range.
func (s *Session) Zoom(zoom int) View {
	s.mu.Lock()
	view := s.viewport.ZoomTo(zoom)
	s.mu.Unlock()
	s.display.ShowView(view)
	return view
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records is the customer snapshot taken by the last Load. It is not
// refreshed when the registry changes.
func (s *Session) Records() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Requested returns the numeric ids of the last accepted query, as typed.
func (s *Session) Requested() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requested)
}

// Waypoints returns the resolved route in visiting order.
func (s *Session) Waypoints() []domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.waypoints)
}

func (s *Session) Position() (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return domain.Position{}, false
	}
	return *s.position, true
}

// Route returns the last accepted path, or nil.
func (s *Session) Route() *domain.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.route
}

func (s *Session) Viewport() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport.View()
}

// consume applies updates in arrival order until the channel closes or
// tracking generation gen ends.
func (s *Session) consume(ctx context.Context, gen uint64, updates <-chan domain.Position) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-updates:
			if !ok {
				return
			}
			if !s.applyPosition(gen, pos) {
				return
			}
		}
	}
}

func (s *Session) applyPosition(gen uint64, pos domain.Position) bool {
	s.mu.Lock()
	if s.state != StateTracking || s.trackGen != gen {
		s.mu.Unlock()
		return false
	}
	first := s.position == nil
	s.position = &pos

	var markers []Marker
	if first {
		// The device becomes the route start.
		markers = routeMarkers(s.waypoints, true)
	}
	var view *View
	if s.opts.Follow {
		v := s.viewport.Recenter(pos.Point(), s.trackingZoom)
		view = &v
	}
	routeMode := s.opts.RouteMode
	s.mu.Unlock()

	metrics.PositionsReceived.WithLabelValues("session").Inc()
	s.display.ShowDevice(pos)
	if markers != nil {
		s.display.ShowMarkers(markers)
	}
	if view != nil {
		s.display.ShowView(*view)
	}
	if routeMode {
		s.requestRoute()
	}
	return true
}

// requestRoute starts a route computation from the current position through
// the waypoints, superseding any computation in flight.
func (s *Session) requestRoute() {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return
	}
	if s.cancelRoute != nil {
		s.cancelRoute()
		metrics.RouteComputations.WithLabelValues("superseded").Inc()
	}
	s.routeGen++
	gen := s.routeGen
	ctx, cancel := context.WithCancel(s.trackCtx)
	s.cancelRoute = cancel

	var origin *domain.GeoPoint
	if s.position != nil {
		o := s.position.Point()
		origin = &o
	}
	points := make([]domain.GeoPoint, len(s.waypoints))
	for i, c := range s.waypoints {
		points[i] = c.Point()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()

		var path *domain.Path
		err := domain.ErrRoutingUnavailable
		if s.router != nil {
			path, err = s.router.ComputeRoute(ctx, origin, points)
		}
		s.finishRoute(gen, path, err)
	}()
}

func (s *Session) finishRoute(gen uint64, path *domain.Path, err error) {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()

	s.mu.Lock()
	if s.state != StateTracking || s.routeGen != gen {
		s.mu.Unlock()
		return
	}
	s.cancelRoute = nil
	if err == nil && path == nil {
		err = domain.ErrRoutingUnavailable
	}
	if err != nil {
		s.route = nil
		s.mu.Unlock()

		metrics.RouteComputations.WithLabelValues("unavailable").Inc()
		s.logger.Warn("route computation failed", "error", err)
		s.display.ShowRoute(nil)
		s.display.Notify(Notice{Kind: NoticeRoutingUnavailable, Message: domain.ErrRoutingUnavailable.Error()})
		return
	}
	s.route = path
	s.mu.Unlock()

	metrics.RouteComputations.WithLabelValues("ok").Inc()
	s.display.ShowRoute(path)
}

// stopLocked leaves Tracking. Callers hold mu.
func (s *Session) stopLocked() {
	if s.state != StateTracking {
		return
	}
	s.state = StateRouteResolved
	s.trackGen++
	s.routeGen++
	if s.cancelRoute != nil {
		s.cancelRoute()
		s.cancelRoute = nil
	}
	if s.stopTrack != nil {
		s.stopTrack()
		s.stopTrack = nil
	}
	s.logger.Info("tracking stopped")
}

func customerMarkers(records []domain.Customer) []Marker {
	markers := make([]Marker, len(records))
	for i, c := range records {
		markers[i] = Marker{CustomerID: c.ID, Label: c.Name, Role: RoleCustomer, Point: c.Point()}
	}
	return markers
}

// routeMarkers labels the waypoints in visiting order. When the device is
// the origin every customer is a waypoint except the last.
func routeMarkers(waypoints []domain.Customer, deviceIsStart bool) []Marker {
	markers := make([]Marker, len(waypoints))
	last := len(waypoints) - 1
	for i, c := range waypoints {
		role := RoleWaypoint
		switch {
		case i == last:
			role = RoleEnd
		case i == 0 && !deviceIsStart:
			role = RoleStart
		}
		markers[i] = Marker{CustomerID: c.ID, Label: c.Name, Role: role, Point: c.Point()}
	}
	return markers
}
