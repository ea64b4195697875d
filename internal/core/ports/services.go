package ports

import (
	"context"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishCustomerEvent(ctx context.Context, event *domain.CustomerEvent) error
	PublishPosition(ctx context.Context, pos *domain.Position) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RoutingCapability computes a path through waypoints in the given order.
// origin may be nil when no device position is known. Failures wrap
// domain.ErrRoutingUnavailable.
type RoutingCapability interface {
	ComputeRoute(ctx context.Context, origin *domain.GeoPoint, waypoints []domain.GeoPoint) (*domain.Path, error)
}

// PositionSource streams device positions until ctx is cancelled, closing
// the channel afterwards. It returns domain.ErrGeolocationUnavailable when
// no provider exists.
type PositionSource interface {
	Watch(ctx context.Context) (<-chan domain.Position, error)
}

// CustomerDirectory is the navigation session's read-only view of the registry.
type CustomerDirectory interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}
