package navigation_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/navigation"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// --- Fakes ---

type fakeDirectory struct {
	mu        sync.Mutex
	customers []domain.Customer
	err       error
}

func (f *fakeDirectory) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.customers), nil
}

type routeCall struct {
	origin    *domain.GeoPoint
	waypoints []domain.GeoPoint
}

// funcRouter answers immediately and records every call.
type funcRouter struct {
	mu    sync.Mutex
	calls []routeCall
	fn    func(origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error)
}

func (r *funcRouter) ComputeRoute(ctx context.Context, origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error) {
	r.mu.Lock()
	r.calls = append(r.calls, routeCall{origin: origin, waypoints: waypoints})
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		return fn(origin, waypoints)
	}
	geometry := waypoints
	if origin != nil {
		geometry = append([]domain.GeoPoint{*origin}, waypoints...)
	}
	return &domain.Path{Geometry: geometry}, nil
}

func (r *funcRouter) Calls() []routeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

type routeResult struct {
	path *domain.Path
	err  error
}

type pendingRoute struct {
	routeCall
	reply chan routeResult
}

// gatedRouter blocks every call until the test replies, ignoring ctx.
type gatedRouter struct {
	calls chan pendingRoute
}

func newGatedRouter() *gatedRouter { return &gatedRouter{calls: make(chan pendingRoute, 16)} }

func (r *gatedRouter) ComputeRoute(ctx context.Context, origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error) {
	p := pendingRoute{routeCall: routeCall{origin, waypoints}, reply: make(chan routeResult, 1)}
	r.calls <- p
	res := <-p.reply
	return res.path, res.err
}

func (r *gatedRouter) next(t *testing.T) pendingRoute {
	t.Helper()
	select {
	case p := <-r.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a route request")
		return pendingRoute{}
	}
}

type chanSource struct {
	ch  chan domain.Position
	err error
}

func newChanSource() *chanSource { return &chanSource{ch: make(chan domain.Position)} }

func (s *chanSource) Watch(ctx context.Context) (<-chan domain.Position, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

type recDisplay struct {
	mu      sync.Mutex
	markers [][]navigation.Marker
	devices []domain.Position
	routes  []*domain.Path
	views   []navigation.View
	notices []navigation.Notice
}

func (d *recDisplay) ShowMarkers(m []navigation.Marker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markers = append(d.markers, m)
}

func (d *recDisplay) ShowDevice(p domain.Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices = append(d.devices, p)
}

func (d *recDisplay) ShowRoute(p *domain.Path) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = append(d.routes, p)
}

func (d *recDisplay) ShowView(v navigation.View) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.views = append(d.views, v)
}

func (d *recDisplay) Notify(n navigation.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *recDisplay) hasNotice(kind navigation.NoticeKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.ContainsFunc(d.notices, func(n navigation.Notice) bool { return n.Kind == kind })
}

func (d *recDisplay) drawnRoutes() []*domain.Path {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*domain.Path
	for _, p := range d.routes {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// --- Helpers ---

var testCustomers = []domain.Customer{
	{ID: 1, Name: "Customer A", Latitude: 6.9271, Longitude: 79.8612},
	{ID: 2, Name: "Customer B", Latitude: 6.9147, Longitude: 79.9733},
	{ID: 9, Name: "Customer C", Latitude: 6.8650, Longitude: 79.8991},
}

type fixture struct {
	session   *navigation.Session
	directory *fakeDirectory
	display   *recDisplay
}

func newFixture(t *testing.T, router ports.RoutingCapability, positions *chanSource) *fixture {
	t.Helper()
	f := &fixture{
		directory: &fakeDirectory{customers: testCustomers},
		display:   &recDisplay{},
	}
	cfg := navigation.Config{
		Directory:    f.directory,
		Router:       router,
		Display:      f.display,
		Viewport:     sriLanka,
		TrackingZoom: 15,
	}
	if positions != nil {
		cfg.Positions = positions
	}
	s, err := navigation.NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	f.session = s
	return f
}

func (f *fixture) loadAndRoute(t *testing.T, query string) {
	t.Helper()
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := f.session.SetRoute(query); err != nil {
		t.Fatalf("set route: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func pos(lat, lon float64) domain.Position {
	return domain.Position{AgentID: "van-1", Latitude: lat, Longitude: lon}
}

func send(t *testing.T, src *chanSource, p domain.Position) {
	t.Helper()
	select {
	case src.ch <- p:
	case <-time.After(2 * time.Second):
		t.Fatal("position not consumed")
	}
}

// --- Tests ---

func TestSession_LoadShowsCustomers(t *testing.T) {
	f := newFixture(t, nil, nil)
	if f.session.State() != navigation.StateIdle {
		t.Fatalf("expected idle, got %v", f.session.State())
	}
	if f.session.ID() == "" {
		t.Error("expected a session id")
	}

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.session.State() != navigation.StateRecordsLoaded {
		t.Errorf("expected records_loaded, got %v", f.session.State())
	}
	if len(f.session.Records()) != 3 {
		t.Errorf("expected 3 records, got %d", len(f.session.Records()))
	}
	if len(f.display.markers) != 1 || len(f.display.markers[0]) != 3 || f.display.markers[0][0].Role != navigation.RoleCustomer {
		t.Errorf("unexpected markers %+v", f.display.markers)
	}
}

func TestSession_LoadFailureIsRetryable(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.directory.err = errors.New("connection refused")

	err := f.session.Load(context.Background())
	if !errors.Is(err, domain.ErrRecordsUnavailable) {
		t.Fatalf("expected ErrRecordsUnavailable, got %v", err)
	}
	if f.session.State() != navigation.StateIdle {
		t.Errorf("expected idle after failure, got %v", f.session.State())
	}
	if !f.display.hasNotice(navigation.NoticeRecordsUnavailable) {
		t.Error("expected a records notice")
	}

	f.directory.err = nil
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if f.session.State() != navigation.StateRecordsLoaded {
		t.Errorf("expected records_loaded after retry, got %v", f.session.State())
	}
}

func TestSession_SetRouteBeforeLoad(t *testing.T) {
	f := newFixture(t, nil, nil)
	if _, err := f.session.SetRoute("1"); !errors.Is(err, domain.ErrRecordsNotLoaded) {
		t.Fatalf("expected ErrRecordsNotLoaded, got %v", err)
	}
}

func TestSession_SetRouteResolvesInOrder(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.loadAndRoute(t, "2, 2, x, 9, 1")

	if f.session.State() != navigation.StateRouteResolved {
		t.Fatalf("expected route_resolved, got %v", f.session.State())
	}
	var ids []int64
	for _, c := range f.session.Waypoints() {
		ids = append(ids, c.ID)
	}
	if !slices.Equal(ids, []int64{2, 9, 1}) {
		t.Errorf("expected [2 9 1], got %v", ids)
	}
	if got := f.session.Requested(); !slices.Equal(got, []int64{2, 2, 9, 1}) {
		t.Errorf("expected requested [2 2 9 1], got %v", got)
	}

	last := f.display.markers[len(f.display.markers)-1]
	roles := []navigation.MarkerRole{last[0].Role, last[1].Role, last[2].Role}
	want := []navigation.MarkerRole{navigation.RoleStart, navigation.RoleWaypoint, navigation.RoleEnd}
	if !slices.Equal(roles, want) {
		t.Errorf("expected roles %v, got %v", want, roles)
	}
}

func TestSession_SetRouteNothingValid(t *testing.T) {
	f := newFixture(t, nil, nil)
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := f.session.SetRoute("x, 42")
	if !errors.Is(err, domain.ErrNoValidWaypoints) {
		t.Fatalf("expected ErrNoValidWaypoints, got %v", err)
	}
	if err.Error() != "no valid customers selected" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if f.session.State() != navigation.StateRecordsLoaded {
		t.Errorf("expected records_loaded, got %v", f.session.State())
	}
}

func TestSession_StartTrackingRequiresRoute(t *testing.T) {
	f := newFixture(t, &funcRouter{}, newChanSource())
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{}); !errors.Is(err, domain.ErrRouteNotSet) {
		t.Fatalf("expected ErrRouteNotSet, got %v", err)
	}
}

func TestSession_TrackingWithoutGeolocation(t *testing.T) {
	router := &funcRouter{}
	f := newFixture(t, router, nil)
	f.loadAndRoute(t, "1, 2")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if f.session.State() != navigation.StateTracking {
		t.Errorf("expected tracking, got %v", f.session.State())
	}
	if !f.display.hasNotice(navigation.NoticeGeolocationUnavailable) {
		t.Error("expected geolocation notice")
	}
	waitFor(t, "initial route", func() bool { return f.session.Route() != nil })

	calls := router.Calls()
	if calls[0].origin != nil {
		t.Errorf("expected no origin without a position, got %v", calls[0].origin)
	}
	if len(calls[0].waypoints) != 2 || calls[0].waypoints[0] != testCustomers[0].Point() {
		t.Errorf("unexpected waypoints %v", calls[0].waypoints)
	}
}

func TestSession_PositionUpdatesRecomputeSameOrder(t *testing.T) {
	router := &funcRouter{}
	src := newChanSource()
	f := newFixture(t, router, src)
	f.loadAndRoute(t, "9 1 2")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true, Follow: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := pos(6.90, 79.85)
	send(t, src, p)
	waitFor(t, "recompute from the device", func() bool {
		for _, c := range router.Calls() {
			if c.origin != nil && *c.origin == p.Point() {
				return true
			}
		}
		return false
	})

	for _, c := range router.Calls() {
		want := []domain.GeoPoint{testCustomers[2].Point(), testCustomers[0].Point(), testCustomers[1].Point()}
		if !slices.Equal(c.waypoints, want) {
			t.Errorf("waypoint order changed: %v", c.waypoints)
		}
	}

	got, ok := f.session.Position()
	if !ok || got != p {
		t.Errorf("expected position %v, got %v (%v)", p, got, ok)
	}
	v := f.session.Viewport()
	if v.Zoom != 15 || !near(v.Center.Lat, p.Latitude, 1e-9) || !near(v.Center.Lon, p.Longitude, 1e-9) {
		t.Errorf("expected view to follow the device at zoom 15, got %+v", v)
	}
}

func TestSession_WithoutRouteModePositionsDoNotRecompute(t *testing.T) {
	router := &funcRouter{}
	src := newChanSource()
	f := newFixture(t, router, src)
	f.loadAndRoute(t, "1")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	send(t, src, pos(6.90, 79.85))
	send(t, src, pos(6.91, 79.86))
	waitFor(t, "second position", func() bool {
		p, ok := f.session.Position()
		return ok && p.Latitude == 6.91
	})
	f.session.Close()

	if n := len(router.Calls()); n != 1 {
		t.Errorf("expected only the initial computation, got %d", n)
	}
}

func TestSession_RoutingFailureIsNonFatal(t *testing.T) {
	router := &funcRouter{fn: func(*domain.GeoPoint, []domain.GeoPoint) (*domain.Path, error) {
		return nil, domain.ErrRoutingUnavailable
	}}
	f := newFixture(t, router, nil)
	f.loadAndRoute(t, "1, 2")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "routing notice", func() bool { return f.display.hasNotice(navigation.NoticeRoutingUnavailable) })

	if f.session.Route() != nil {
		t.Error("route must be cleared on failure")
	}
	if f.session.State() != navigation.StateTracking {
		t.Errorf("session must keep tracking, got %v", f.session.State())
	}
}

func TestSession_LatestRouteWins(t *testing.T) {
	router := newGatedRouter()
	src := newChanSource()
	f := newFixture(t, router, src)
	f.loadAndRoute(t, "1, 2")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	initial := router.next(t)
	send(t, src, pos(6.90, 79.85))
	first := router.next(t)
	send(t, src, pos(6.91, 79.86))
	second := router.next(t)

	latest := &domain.Path{DistanceMeters: 2}
	second.reply <- routeResult{path: latest}
	waitFor(t, "latest route", func() bool { return f.session.Route() == latest })

	first.reply <- routeResult{path: &domain.Path{DistanceMeters: 1}}
	initial.reply <- routeResult{path: &domain.Path{DistanceMeters: 0}}
	f.session.Close()

	if f.session.Route() != latest {
		t.Errorf("superseded result replaced the latest route: %+v", f.session.Route())
	}
	if drawn := f.display.drawnRoutes(); len(drawn) != 1 || drawn[0] != latest {
		t.Errorf("expected only the latest route drawn, got %v", drawn)
	}
}

func TestSession_StopDiscardsInFlightRoute(t *testing.T) {
	router := newGatedRouter()
	f := newFixture(t, router, nil)
	f.loadAndRoute(t, "1")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	inflight := router.next(t)

	f.session.StopTracking()
	if f.session.State() != navigation.StateRouteResolved {
		t.Errorf("expected route_resolved after stop, got %v", f.session.State())
	}
	inflight.reply <- routeResult{path: &domain.Path{}}
	f.session.Close()

	if f.session.Route() != nil {
		t.Error("result arriving after stop must be discarded")
	}
	if len(f.display.drawnRoutes()) != 0 {
		t.Error("result arriving after stop must not be drawn")
	}
}

func TestSession_RecenterWithoutPosition(t *testing.T) {
	f := newFixture(t, nil, nil)
	before := f.session.Viewport()

	v, err := f.session.Recenter()
	if !errors.Is(err, domain.ErrPositionUnavailable) {
		t.Fatalf("expected ErrPositionUnavailable, got %v", err)
	}
	if v != before || f.session.Viewport() != before {
		t.Errorf("viewport changed: %+v -> %+v", before, f.session.Viewport())
	}
	if !f.display.hasNotice(navigation.NoticePositionUnavailable) {
		t.Error("expected position notice")
	}
}

func TestSession_RecenterOnDevice(t *testing.T) {
	src := newChanSource()
	f := newFixture(t, &funcRouter{}, src)
	f.loadAndRoute(t, "1")

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := pos(6.9271, 79.8612)
	send(t, src, p)
	waitFor(t, "position", func() bool { _, ok := f.session.Position(); return ok })

	v, err := f.session.Recenter()
	if err != nil {
		t.Fatalf("recenter: %v", err)
	}
	if v.Zoom != 15 || !near(v.Center.Lat, p.Latitude, 1e-9) || !near(v.Center.Lon, p.Longitude, 1e-9) {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestSession_ReloadStopsTracking(t *testing.T) {
	f := newFixture(t, &funcRouter{}, nil)
	f.loadAndRoute(t, "1, 2")
	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.directory.mu.Lock()
	f.directory.customers = append(slices.Clone(testCustomers), domain.Customer{ID: 10, Name: "D", Latitude: 7, Longitude: 80})
	f.directory.mu.Unlock()

	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if f.session.State() != navigation.StateRecordsLoaded {
		t.Errorf("expected records_loaded, got %v", f.session.State())
	}
	if len(f.session.Waypoints()) != 0 || f.session.Route() != nil {
		t.Error("reload must clear the route")
	}
	if len(f.session.Records()) != 4 {
		t.Errorf("expected refreshed records, got %d", len(f.session.Records()))
	}
}

func TestSession_StaleSnapshotUntilReload(t *testing.T) {
	f := newFixture(t, nil, nil)
	if err := f.session.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	f.directory.mu.Lock()
	f.directory.customers = append(slices.Clone(testCustomers), domain.Customer{ID: 10, Name: "D", Latitude: 7, Longitude: 80})
	f.directory.mu.Unlock()

	if _, err := f.session.SetRoute("10"); !errors.Is(err, domain.ErrNoValidWaypoints) {
		t.Errorf("expected id 10 unknown to the loaded snapshot, got %v", err)
	}
}

// gateDisplay holds every non-nil route drawing until released.
type gateDisplay struct {
	*recDisplay
	entered chan struct{}
	release chan struct{}
}

func (d *gateDisplay) ShowRoute(p *domain.Path) {
	if p != nil {
		d.entered <- struct{}{}
		<-d.release
	}
	d.recDisplay.ShowRoute(p)
}

func TestSession_ReloadWaitsForRouteBeingDrawn(t *testing.T) {
	display := &gateDisplay{recDisplay: &recDisplay{}, entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := navigation.NewSession(navigation.Config{
		Directory: &fakeDirectory{customers: testCustomers},
		Router:    &funcRouter{},
		Display:   display,
		Viewport:  sriLanka,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.Close)
	ctx := context.Background()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := s.SetRoute("1, 2"); err != nil {
		t.Fatalf("set route: %v", err)
	}
	if err := s.StartTracking(ctx, navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-display.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("route was never drawn")
	}

	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Load(ctx) }()
	select {
	case err := <-reloaded:
		t.Fatalf("reload finished while a route was still being drawn (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(display.release)
	if err := <-reloaded; err != nil {
		t.Fatalf("reload: %v", err)
	}

	display.mu.Lock()
	routes := slices.Clone(display.routes)
	display.mu.Unlock()
	if len(routes) == 0 || routes[len(routes)-1] != nil {
		t.Errorf("expected the reload to clear the route last, got %v", routes)
	}
}

func TestSession_TrackingEndsWithItsContext(t *testing.T) {
	router := &funcRouter{}
	f := newFixture(t, router, nil)
	f.loadAndRoute(t, "1, 2")

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.session.StartTracking(ctx, navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	waitFor(t, "tracking to stop", func() bool { return f.session.State() == navigation.StateRouteResolved })

	if err := f.session.StartTracking(context.Background(), navigation.TrackOptions{RouteMode: true}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, "route after restart", func() bool { return f.session.Route() != nil })
	if f.session.State() != navigation.StateTracking {
		t.Errorf("expected tracking after restart, got %v", f.session.State())
	}
}
