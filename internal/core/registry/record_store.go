// Package registry owns the customer collection: id assignment, validation
// and the durable document rewrite that commits every mutation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/ports"
	"github.com/samirrijal/fieldnav/internal/pkg/metrics"
)

// snapshot is an immutable committed state. It is replaced, never modified.
type snapshot struct {
	customers []domain.Customer
	version   uint64
}

// RecordStore is the single owner of the customer collection.
//
// Mutations serialize on mu for the whole read-modify-write cycle and only
// publish a new snapshot after the document store accepted the write. Reads
// load the current snapshot without locking.
type RecordStore struct {
	docs   ports.DocumentStore
	logger *slog.Logger

	epoch  string

	mu     sync.Mutex
	lastID int64 // guarded by mu
	snap   atomic.Pointer[snapshot]
}

var _ ports.CustomerRepository = (*RecordStore)(nil)

// Open loads the durable document and returns a store serving it.
// A document holding duplicate ids or invalid records is rejected.
func Open(ctx context.Context, docs ports.DocumentStore, logger *slog.Logger) (*RecordStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	customers, err := docs.Load(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Err: err}
	}

	seen := make(map[int64]struct{}, len(customers))
	var maxID int64
	for i, c := range customers {
		if c.ID <= 0 {
			return nil, fmt.Errorf("record %d: invalid id %d", i, c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("record %d: duplicate id %d", i, c.ID)
		}
		seen[c.ID] = struct{}{}
		if err := domain.ValidateCustomer(c); err != nil {
			return nil, fmt.Errorf("record %d (id %d): %w", i, c.ID, err)
		}
		maxID = max(maxID, c.ID)
	}

	s := &RecordStore{docs: docs, epoch: uuid.NewString(), logger: logger.With("component", "registry")}
	s.lastID = maxID
	s.snap.Store(&snapshot{customers: slices.Clip(customers)})
	metrics.CustomersStored.Set(float64(len(customers)))

	s.logger.Info("registry loaded", "customers", len(customers), "max_id", maxID)
	return s, nil
}

// List returns the committed records in insertion order.
func (s *RecordStore) List() []domain.Customer {
	return slices.Clone(s.snap.Load().customers)
}

// Get returns the record with id.
func (s *RecordStore) Get(id int64) (domain.Customer, error) {
	for _, c := range s.snap.Load().customers {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Customer{}, &domain.NotFoundError{ID: id}
}

// Version is incremented by every committed mutation.
func (s *RecordStore) Version() uint64 {
	return s.snap.Load().version
}

// Epoch is fixed at Open. Caches shared across processes key on it together
// with Version, since the version counter restarts at zero on every Open.
func (s *RecordStore) Epoch() string {
	return s.epoch
}

// Create validates fields, assigns the next id and persists the new record.
func (s *RecordStore) Create(ctx context.Context, fields domain.CustomerFields) (domain.Customer, error) {
	c, err := domain.NewCustomer(fields)
	if err != nil {
		return domain.Customer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	c.ID = s.nextID(cur.customers)

	next := make([]domain.Customer, len(cur.customers), len(cur.customers)+1)
	copy(next, cur.customers)
	next = append(next, c)

	if err := s.commit(ctx, "create", cur, next); err != nil {
		return domain.Customer{}, err
	}
	s.lastID = c.ID

	s.logger.Debug("customer created", "id", c.ID)
	return c, nil
}

// Update merges the present fields over the record with id and persists it.
// The merged record is validated as a whole.
func (s *RecordStore) Update(ctx context.Context, id int64, fields domain.CustomerFields) (domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	idx := slices.IndexFunc(cur.customers, func(c domain.Customer) bool { return c.ID == id })
	if idx < 0 {
		return domain.Customer{}, &domain.NotFoundError{ID: id}
	}

	updated := cur.customers[idx].Apply(fields)
	if err := domain.ValidateCustomer(updated); err != nil {
		return domain.Customer{}, err
	}

	next := slices.Clone(cur.customers)
	next[idx] = updated

	if err := s.commit(ctx, "update", cur, next); err != nil {
		return domain.Customer{}, err
	}

	s.logger.Debug("customer updated", "id", id)
	return updated, nil
}

// Delete removes the record with id. Deleting an absent id is a no-op that
// performs no write and reports removed=false.
func (s *RecordStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	idx := slices.IndexFunc(cur.customers, func(c domain.Customer) bool { return c.ID == id })
	if idx < 0 {
		return false, nil
	}

	next := slices.Delete(slices.Clone(cur.customers), idx, idx+1)
	if err := s.commit(ctx, "delete", cur, next); err != nil {
		return false, err
	}

	s.logger.Debug("customer deleted", "id", id)
	return true, nil
}

// SeedIfEmpty creates one record per entry when the store holds none.
// All seeds are committed in a single document write.
func (s *RecordStore) SeedIfEmpty(ctx context.Context, seeds []domain.CustomerFields) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap.Load()
	if len(cur.customers) > 0 || len(seeds) == 0 {
		return 0, nil
	}

	next := make([]domain.Customer, 0, len(seeds))
	id := s.lastID
	for _, f := range seeds {
		c, err := domain.NewCustomer(f)
		if err != nil {
			return 0, fmt.Errorf("seed %d: %w", len(next), err)
		}
		id++
		c.ID = id
		next = append(next, c)
	}

	if err := s.commit(ctx, "seed", cur, next); err != nil {
		return 0, err
	}
	s.lastID = id

	s.logger.Info("registry seeded", "customers", len(next))
	return len(next), nil
}

// nextID returns max(highest existing id, highest id ever allocated) + 1.
func (s *RecordStore) nextID(customers []domain.Customer) int64 {
	top := s.lastID
	for _, c := range customers {
		top = max(top, c.ID)
	}
	return top + 1
}

// commit writes next through the document store and publishes it as the new
// snapshot. On failure the current snapshot stays in place. Callers hold mu.
func (s *RecordStore) commit(ctx context.Context, op string, cur *snapshot, next []domain.Customer) error {
	start := time.Now()
	err := s.docs.Save(ctx, next)
	metrics.StoreWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreWrites.WithLabelValues(op, "error").Inc()
		s.logger.Error("document write failed", "op", op, "error", err)
		return &domain.StorageError{Op: op, Err: err}
	}
	metrics.StoreWrites.WithLabelValues(op, "ok").Inc()

	s.snap.Store(&snapshot{customers: slices.Clip(next), version: cur.version + 1})
	metrics.CustomersStored.Set(float64(len(next)))
	return nil
}
