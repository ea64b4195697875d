package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
)

// positionBuffer bounds how far a slow consumer may fall behind before the
// oldest queued reports are dropped.
const positionBuffer = 16

// PositionSource implements ports.PositionSource by subscribing to an
// agent's position subject.
type PositionSource struct {
	conn    *nats.Conn
	agentID string
	logger  *slog.Logger
}

var _ ports.PositionSource = (*PositionSource)(nil)

// NewPositionSource watches agentID's positions on conn. An empty agentID
// watches every agent.
func NewPositionSource(conn *nats.Conn, agentID string, logger *slog.Logger) *PositionSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PositionSource{conn: conn, agentID: agentID, logger: logger.With("agent", agentID)}
}

// Watch streams decoded positions until ctx is done.
func (s *PositionSource) Watch(ctx context.Context) (<-chan domain.Position, error) {
	if s.conn == nil || s.conn.IsClosed() {
		return nil, domain.ErrGeolocationUnavailable
	}

	out := make(chan domain.Position, positionBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := s.conn.Subscribe(PositionSubject(s.agentID), func(msg *nats.Msg) {
		pos, err := DecodePosition(msg.Data)
		if err != nil {
			s.logger.Warn("dropping malformed position", "subject", msg.Subject, "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		if offerLatest(out, pos) {
			s.logger.Warn("position consumer lagging, dropped oldest report")
		}
		metrics.PositionsReceived.WithLabelValues("nats").Inc()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeolocationUnavailable, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// offerLatest queues pos on out. When out is full the oldest queued report
// is discarded so the newest position always gets through. The caller must
// be the only sender on out.
func offerLatest(out chan domain.Position, pos domain.Position) (dropped bool) {
	for {
		select {
		case out <- pos:
			return dropped
		default:
		}
		select {
		case <-out:
			dropped = true
		default:
		}
	}
}

// DecodePosition parses and validates a position message.
func DecodePosition(data []byte) (domain.Position, error) {
	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return domain.Position{}, err
	}
	if err := domain.ValidatePosition(pos); err != nil {
		return domain.Position{}, err
	}
	return pos, nil
}
