package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
	"github.com/samirrijal/fieldnav/internal/pkg/telemetry"
)

const listCacheTTL = 300 // seconds; keys are versioned so this only bounds memory

// CustomerService is the request-facing registry: it validates, persists
// through the repository, caches the list read path and announces every
// committed mutation.
type CustomerService struct {
	repo   ports.CustomerRepository
	cache  ports.CacheService
	events ports.EventPublisher
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewCustomerService creates a new CustomerService. cache and events may be nil.
func NewCustomerService(repo ports.CustomerRepository, cache ports.CacheService, events ports.EventPublisher, logger *slog.Logger) *CustomerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CustomerService{
		repo:   repo,
		cache:  cache,
		events: events,
		logger: logger,
		tracer: telemetry.Tracer("usecases"),
		now:    time.Now,
	}
}

// List returns every customer in insertion order.
func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	version := s.repo.Version()
	ctx, span := s.tracer.Start(ctx, "CustomerService.List",
		trace.WithAttributes(telemetry.AttrStoreVersion.Int64(int64(version))))
	defer span.End()

	// Keyed by open epoch and commit version: a mutation or a restart moves
	// readers to a new key.
	cacheKey := fmt.Sprintf("customers:%s:v%d", s.repo.Epoch(), version)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var customers []domain.Customer
			if err := json.Unmarshal(data, &customers); err == nil {
				metrics.CacheHits.WithLabelValues("customers_list").Inc()
				span.SetAttributes(telemetry.AttrCacheHit.Bool(true))
				return customers, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("customers_list").Inc()
	}

	customers := s.repo.List()
	span.SetAttributes(telemetry.AttrCustomers.Int(len(customers)))

	if s.cache != nil {
		if data, err := json.Marshal(customers); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, listCacheTTL)
		}
	}

	return customers, nil
}

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, id int64) (domain.Customer, error) {
	_, span := s.tracer.Start(ctx, "CustomerService.Get",
		trace.WithAttributes(telemetry.AttrCustomerID.Int64(id)))
	defer span.End()

	c, err := s.repo.Get(id)
	if err != nil {
		recordError(span, err)
	}
	return c, err
}

// Create validates fields and stores a new customer with the next id.
func (s *CustomerService) Create(ctx context.Context, fields domain.CustomerFields) (domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.Create")
	defer span.End()

	c, err := s.repo.Create(ctx, fields)
	if err != nil {
		recordError(span, err)
		return domain.Customer{}, err
	}
	span.SetAttributes(telemetry.AttrCustomerID.Int64(c.ID))

	s.publish(ctx, domain.CustomerCreated, c)
	return c, nil
}

// Update merges fields over the customer with id.
func (s *CustomerService) Update(ctx context.Context, id int64, fields domain.CustomerFields) (domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.Update",
		trace.WithAttributes(telemetry.AttrCustomerID.Int64(id)))
	defer span.End()

	c, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		recordError(span, err)
		return domain.Customer{}, err
	}

	s.publish(ctx, domain.CustomerUpdated, c)
	return c, nil
}

// Delete removes the customer with id. An unknown id is not an error.
func (s *CustomerService) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.Delete",
		trace.WithAttributes(telemetry.AttrCustomerID.Int64(id)))
	defer span.End()

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		recordError(span, err)
		return false, err
	}

	if removed {
		s.publish(ctx, domain.CustomerDeleted, domain.Customer{ID: id})
	}
	return removed, nil
}

// Version reports the registry commit counter.
func (s *CustomerService) Version() uint64 {
	return s.repo.Version()
}

// ListCustomers makes the service usable as an in-process ports.CustomerDirectory.
func (s *CustomerService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.List(ctx)
}

// publish announces a committed mutation. The mutation already succeeded,
// so a broker failure is only logged.
func (s *CustomerService) publish(ctx context.Context, typ domain.CustomerEventType, c domain.Customer) {
	if s.events == nil {
		return
	}
	event := &domain.CustomerEvent{Type: typ, Customer: c, At: s.now().UTC()}
	if err := s.events.PublishCustomerEvent(ctx, event); err != nil {
		s.logger.Warn("publish customer event", "type", typ, "id", c.ID, "error", err)
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	if domain.IsStorage(err) {
		span.SetStatus(codes.Error, err.Error())
	}
}
