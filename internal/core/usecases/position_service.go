package usecases

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
	"github.com/samirrijal/fieldnav/internal/pkg/telemetry"
)

// PositionService relays device position reports to subscribers.
type PositionService struct {
	events ports.EventPublisher
	tracer trace.Tracer
	now    func() time.Time
}

// NewPositionService creates a new PositionService. With a nil publisher
// every report fails with domain.ErrMessagingUnavailable.
func NewPositionService(events ports.EventPublisher) *PositionService {
	return &PositionService{events: events, tracer: telemetry.Tracer("usecases"), now: time.Now}
}

// Report validates pos, stamps it when the device sent no timestamp and
// publishes it.
func (s *PositionService) Report(ctx context.Context, pos domain.Position) (domain.Position, error) {
	ctx, span := s.tracer.Start(ctx, "PositionService.Report",
		trace.WithAttributes(telemetry.AttrAgentID.String(pos.AgentID)))
	defer span.End()

	if err := domain.ValidatePosition(pos); err != nil {
		return domain.Position{}, err
	}
	if s.events == nil {
		return domain.Position{}, domain.ErrMessagingUnavailable
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = s.now().UTC()
	}

	if err := s.events.PublishPosition(ctx, &pos); err != nil {
		recordError(span, err)
		return domain.Position{}, fmt.Errorf("%w: %w", domain.ErrMessagingUnavailable, err)
	}
	metrics.PositionsReceived.WithLabelValues("http").Inc()
	return pos, nil
}
