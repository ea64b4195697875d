// Package straightline is an offline routing capability that joins
// waypoints with great-circle legs.
package straightline

import (
	"context"
	"fmt"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/geospatial"
)

type Router struct {
	metersPerSecond float64
}

var _ ports.RoutingCapability = (*Router)(nil)

// New returns a router estimating durations at speedKMH.
func New(speedKMH float64) *Router {
	if speedKMH <= 0 {
		speedKMH = 40
	}
	return &Router{metersPerSecond: speedKMH * 1000 / 3600}
}

func (r *Router) ComputeRoute(ctx context.Context, origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	points := waypoints
	if origin != nil {
		points = append([]domain.GeoPoint{*origin}, waypoints...)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no waypoints", domain.ErrRoutingUnavailable)
	}

	path := &domain.Path{Geometry: append([]domain.GeoPoint(nil), points...)}
	for i := 1; i < len(points); i++ {
		d := geospatial.Distance(points[i-1], points[i])
		dir := geospatial.Compass(geospatial.Bearing(points[i-1], points[i]))
		path.Steps = append(path.Steps, domain.RouteStep{
			Instruction:     fmt.Sprintf("Head %s for %.1f km", dir, d/1000),
			DistanceMeters:  d,
			DurationSeconds: d / r.metersPerSecond,
			Location:        points[i-1],
		})
		path.DistanceMeters += d
	}
	if len(points) > 1 {
		path.Steps = append(path.Steps, domain.RouteStep{
			Instruction: "Arrive at destination",
			Location:    points[len(points)-1],
		})
	}
	path.DurationSeconds = path.DistanceMeters / r.metersPerSecond
	return path, nil
}
