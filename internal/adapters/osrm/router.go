// Package osrm computes routes with the OSRM HTTP API.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// Router implements ports.RoutingCapability against /route/v1.
type Router struct {
	client  *fasthttp.Client
	baseURL string
	profile string
	timeout time.Duration
}

var _ ports.RoutingCapability = (*Router)(nil)

// Option customises a Router.
type Option func(*Router)

// WithClient replaces the HTTP client.
func WithClient(c *fasthttp.Client) Option { return func(r *Router) { r.client = c } }

// New returns a router for the OSRM server at baseURL.
func New(baseURL, profile string, timeout time.Duration, opts ...Option) *Router {
	if profile == "" {
		profile = "driving"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Router{
		client: &fasthttp.Client{
			Name:                "fieldnav",
			MaxConnsPerHost:     16,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		timeout: timeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ComputeRoute asks OSRM for a path visiting origin (when set) and then
// waypoints in order. fasthttp has no context support, so ctx only bounds
// the deadline; a cancelled ctx is checked before and after the call.
func (r *Router) ComputeRoute(ctx context.Context, origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error) {
	points := waypoints
	if origin != nil {
		points = append([]domain.GeoPoint{*origin}, waypoints...)
	}
	switch len(points) {
	case 0:
		return nil, fmt.Errorf("%w: no waypoints", domain.ErrRoutingUnavailable)
	case 1:
		return &domain.Path{Geometry: points}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.routeURL(points))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := r.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRoutingUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var body routeResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: decode (status %d): %w", domain.ErrRoutingUnavailable, resp.StatusCode(), err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, fmt.Errorf("%w: osrm %s: %s", domain.ErrRoutingUnavailable, body.Code, body.Message)
	}
	return body.Routes[0].path(), nil
}

func (r *Router) routeURL(points []domain.GeoPoint) string {
	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	return fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson&steps=true",
		r.baseURL, r.profile, strings.Join(coords, ";"))
}

type routeResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Routes  []route `json:"routes"`
}

type route struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
	} `json:"geometry"`
	Legs []struct {
		Steps []step `json:"steps"`
	} `json:"legs"`
}

type step struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Name     string  `json:"name"`
	Maneuver struct {
		Type     string     `json:"type"`
		Modifier string     `json:"modifier"`
		Location [2]float64 `json:"location"`
	} `json:"maneuver"`
}

func (rt route) path() *domain.Path {
	p := &domain.Path{
		Geometry:        make([]domain.GeoPoint, len(rt.Geometry.Coordinates)),
		DistanceMeters:  rt.Distance,
		DurationSeconds: rt.Duration,
	}
	for i, c := range rt.Geometry.Coordinates {
		p.Geometry[i] = domain.GeoPoint{Lat: c[1], Lon: c[0]}
	}
	for _, leg := range rt.Legs {
		for _, s := range leg.Steps {
			p.Steps = append(p.Steps, domain.RouteStep{
				Instruction:     instruction(s),
				Road:            s.Name,
				DistanceMeters:  s.Distance,
				DurationSeconds: s.Duration,
				Location:        domain.GeoPoint{Lat: s.Maneuver.Location[1], Lon: s.Maneuver.Location[0]},
			})
		}
	}
	return p
}

// instruction renders an OSRM maneuver as short English text.
func instruction(s step) string {
	m := s.Maneuver
	var verb string
	switch m.Type {
	case "depart":
		verb = "Head out"
	case "arrive":
		return "Arrive at destination"
	case "turn", "end of road", "fork", "on ramp", "off ramp":
		verb = "Turn"
	case "roundabout", "rotary":
		verb = "Take the roundabout"
	case "merge":
		verb = "Merge"
	default:
		verb = "Continue"
	}
	if m.Modifier != "" && m.Type != "roundabout" && m.Type != "rotary" && m.Type != "depart" {
		verb += " " + m.Modifier
	}
	if s.Name != "" {
		return verb + " onto " + s.Name
	}
	return verb
}
