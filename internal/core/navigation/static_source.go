package navigation

import (
	"context"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
)

// StaticSource replays a fixed list of positions, then stays silent until
// the watch is cancelled. It stands in for a device when the position is
// known up front (a depot, a typed coordinate, tests).
type StaticSource struct {
	Positions []domain.Position
}

var _ ports.PositionSource = StaticSource{}

func (s StaticSource) Watch(ctx context.Context) (<-chan domain.Position, error) {
	if len(s.Positions) == 0 {
		return nil, domain.ErrGeolocationUnavailable
	}
	out := make(chan domain.Position)
	go func() {
		defer close(out)
		for _, p := range s.Positions {
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}
