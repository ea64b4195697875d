package navigation

import (
	"fmt"
	"math"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

const (
	tileSize       = 256.0
	maxMercatorLat = 85.05112878
)

// ViewportConfig fixes the operational region of a map.
type ViewportConfig struct {
	Bounds  domain.Bounds
	MinZoom int
	MaxZoom int
	Width   int // screen pixels
	Height  int
}

// View is the visible state of a Viewport.
type View struct {
	Center domain.GeoPoint `json:"center"`
	Zoom   int             `json:"zoom"`
}

// Viewport is a Web Mercator map view constrained to a bounding box and a
// zoom range. The visible area never leaves the box; on an axis where it is
// larger than the box, the center is pinned to the box center.
//
// A Viewport is not safe for concurrent use; Session guards its own.
type Viewport struct {
	cfg    ViewportConfig
	center domain.GeoPoint
	zoom   int
}

// NewViewport returns a viewport showing the whole box (fit-to-screen).
func NewViewport(cfg ViewportConfig) (*Viewport, error) {
	if !cfg.Bounds.Valid() {
		return nil, fmt.Errorf("viewport: invalid bounds %+v", cfg.Bounds)
	}
	if cfg.MinZoom < 0 || cfg.MinZoom > cfg.MaxZoom {
		return nil, fmt.Errorf("viewport: invalid zoom range %d..%d", cfg.MinZoom, cfg.MaxZoom)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("viewport: invalid screen size %dx%d", cfg.Width, cfg.Height)
	}

	v := &Viewport{cfg: cfg}
	v.Recenter(v.boxCenter(cfg.MaxZoom), v.FitZoom())
	return v, nil
}

// Config returns the constraints the viewport was built with.
func (v *Viewport) Config() ViewportConfig { return v.cfg }

// View returns the current center and zoom.
func (v *Viewport) View() View {
	return View{Center: v.center, Zoom: v.zoom}
}

// FitZoom is the largest zoom at which the whole box fits on screen,
// or MinZoom when it never does.
func (v *Viewport) FitZoom() int {
	b := v.cfg.Bounds
	for z := v.cfg.MaxZoom; z > v.cfg.MinZoom; z-- {
		x0, y0 := project(domain.GeoPoint{Lat: b.MaxLat, Lon: b.MinLon}, z)
		x1, y1 := project(domain.GeoPoint{Lat: b.MinLat, Lon: b.MaxLon}, z)
		if x1-x0 <= float64(v.cfg.Width) && y1-y0 <= float64(v.cfg.Height) {
			return z
		}
	}
	return v.cfg.MinZoom
}

// Recenter moves the view to center at zoom, then clamps both.
func (v *Viewport) Recenter(center domain.GeoPoint, zoom int) View {
	v.zoom = clampInt(zoom, v.cfg.MinZoom, v.cfg.MaxZoom)
	x, y := project(center, v.zoom)
	v.setPixelCenter(x, y)
	return v.View()
}

// Pan shifts the view by dx, dy screen pixels (positive is east, south).
func (v *Viewport) Pan(dx, dy float64) View {
	x, y := project(v.center, v.zoom)
	v.setPixelCenter(x+dx, y+dy)
	return v.View()
}

// ZoomTo changes the zoom level around the current center.
func (v *Viewport) ZoomTo(zoom int) View {
	return v.Recenter(v.center, zoom)
}

// Visible returns the geographic area currently on screen.
func (v *Viewport) Visible() domain.Bounds {
	x, y := project(v.center, v.zoom)
	hw, hh := float64(v.cfg.Width)/2, float64(v.cfg.Height)/2
	nw := unproject(x-hw, y-hh, v.zoom)
	se := unproject(x+hw, y+hh, v.zoom)
	return domain.Bounds{MinLat: se.Lat, MinLon: nw.Lon, MaxLat: nw.Lat, MaxLon: se.Lon}
}

func (v *Viewport) setPixelCenter(x, y float64) {
	b := v.cfg.Bounds
	x0, y0 := project(domain.GeoPoint{Lat: b.MaxLat, Lon: b.MinLon}, v.zoom)
	x1, y1 := project(domain.GeoPoint{Lat: b.MinLat, Lon: b.MaxLon}, v.zoom)

	x = clampAxis(x, x0, x1, float64(v.cfg.Width)/2)
	y = clampAxis(y, y0, y1, float64(v.cfg.Height)/2)
	v.center = unproject(x, y, v.zoom)
}

func (v *Viewport) boxCenter(zoom int) domain.GeoPoint {
	b := v.cfg.Bounds
	x0, y0 := project(domain.GeoPoint{Lat: b.MaxLat, Lon: b.MinLon}, zoom)
	x1, y1 := project(domain.GeoPoint{Lat: b.MinLat, Lon: b.MaxLon}, zoom)
	return unproject((x0+x1)/2, (y0+y1)/2, zoom)
}

// clampAxis keeps [c-half, c+half] inside [lo, hi], or centers it when the
// span is wider than the box.
func clampAxis(c, lo, hi, half float64) float64 {
	if hi-lo <= 2*half {
		return (lo + hi) / 2
	}
	return math.Min(math.Max(c, lo+half), hi-half)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func worldSize(zoom int) float64 {
	return tileSize * math.Exp2(float64(zoom))
}

// project converts p to Web Mercator pixel coordinates at zoom.
func project(p domain.GeoPoint, zoom int) (x, y float64) {
	s := worldSize(zoom)
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat))
	sin := math.Sin(lat * math.Pi / 180)
	x = (p.Lon + 180) / 360 * s
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * s
	return x, y
}

func unproject(x, y float64, zoom int) domain.GeoPoint {
	s := worldSize(zoom)
	n := math.Pi - 2*math.Pi*y/s
	return domain.GeoPoint{
		Lat: 180 / math.Pi * math.Atan(math.Sinh(n)),
		Lon: x/s*360 - 180,
	}
}
