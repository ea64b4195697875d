package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/samirrijal/fieldnav/internal/core/domain"
	"github.com/samirrijal/fieldnav/internal/core/registry"
	"github.com/samirrijal/fieldnav/internal/core/usecases"
)

// --- Mock CustomerRepository ---

type mockCustomerRepo struct {
	listFn   func() []domain.Customer
	getFn    func(id int64) (domain.Customer, error)
	createFn func(ctx context.Context, f domain.CustomerFields) (domain.Customer, error)
	updateFn func(ctx context.Context, id int64, f domain.CustomerFields) (domain.Customer, error)
	deleteFn func(ctx context.Context, id int64) (bool, error)
	version  uint64
	epoch    string
	listHits int
}

func (m *mockCustomerRepo) List() []domain.Customer {
	m.listHits++
	if m.listFn != nil {
		return m.listFn()
	}
	return nil
}

func (m *mockCustomerRepo) Get(id int64) (domain.Customer, error) {
	if m.getFn != nil {
		return m.getFn(id)
	}
	return domain.Customer{}, &domain.NotFoundError{ID: id}
}

func (m *mockCustomerRepo) Create(ctx context.Context, f domain.CustomerFields) (domain.Customer, error) {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return domain.Customer{}, nil
}

func (m *mockCustomerRepo) Update(ctx context.Context, id int64, f domain.CustomerFields) (domain.Customer, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, f)
	}
	return domain.Customer{}, nil
}

func (m *mockCustomerRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return false, nil
}

func (m *mockCustomerRepo) Version() uint64 { return m.version }
func (m *mockCustomerRepo) Epoch() string   { return m.epoch }

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	events    []domain.CustomerEvent
	positions []domain.Position
	err       error
}

func (m *mockPublisher) PublishCustomerEvent(ctx context.Context, e *domain.CustomerEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *mockPublisher) PublishPosition(ctx context.Context, p *domain.Position) error {
	if m.err != nil {
		return m.err
	}
	m.positions = append(m.positions, *p)
	return nil
}

// --- In-memory DocumentStore ---

type memDocs struct {
	mu   sync.Mutex
	data []domain.Customer
}

func (m *memDocs) Load(ctx context.Context) ([]domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data), nil
}

func (m *memDocs) Save(ctx context.Context, customers []domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = slices.Clone(customers)
	return nil
}

// --- Tests ---

func TestCustomerService_ListUsesVersionedCache(t *testing.T) {
	repo := &mockCustomerRepo{
		epoch:   "e1",
		version: 3,
		listFn: func() []domain.Customer {
			return []domain.Customer{{ID: 1, Name: "A", Latitude: 6.9, Longitude: 79.8}}
		},
	}
	cache := newMockCache()
	svc := usecases.NewCustomerService(repo, cache, nil, nil)
	ctx := context.Background()

	for range 2 {
		got, err := svc.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Name != "A" {
			t.Fatalf("unexpected list %+v", got)
		}
	}
	if repo.listHits != 1 {
		t.Errorf("expected one repository read, got %d", repo.listHits)
	}
	if _, ok := cache.data["customers:e1:v3"]; !ok {
		t.Error("expected list cached under customers:e1:v3")
	}

	repo.version = 4
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listHits != 2 {
		t.Errorf("new version must bypass the old cache entry, got %d reads", repo.listHits)
	}
}

func TestCustomerService_ListCorruptCacheFallsBack(t *testing.T) {
	repo := &mockCustomerRepo{epoch: "e1", listFn: func() []domain.Customer { return []domain.Customer{{ID: 9}} }}
	cache := newMockCache()
	cache.data["customers:e1:v0"] = []byte("{not json")
	svc := usecases.NewCustomerService(repo, cache, nil, nil)

	got, _ := svc.List(context.Background())
	if len(got) != 1 || got[0].ID != 9 {
		t.Errorf("expected repository data, got %+v", got)
	}
	var cached []domain.Customer
	if err := json.Unmarshal(cache.data["customers:e1:v0"], &cached); err != nil {
		t.Errorf("expected cache repaired: %v", err)
	}
}

func TestCustomerService_CreatePublishesEvent(t *testing.T) {
	repo := &mockCustomerRepo{
		createFn: func(ctx context.Context, f domain.CustomerFields) (domain.Customer, error) {
			return domain.Customer{ID: 1, Name: *f.Name, Latitude: *f.Latitude, Longitude: *f.Longitude}, nil
		},
	}
	pub := &mockPublisher{}
	svc := usecases.NewCustomerService(repo, nil, pub, nil)

	name, lat, lon := "A", 6.9, 79.8
	c, err := svc.Create(context.Background(), domain.CustomerFields{Name: &name, Latitude: &lat, Longitude: &lon})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	if pub.events[0].Type != domain.CustomerCreated || pub.events[0].Customer != c {
		t.Errorf("unexpected event %+v", pub.events[0])
	}
	if pub.events[0].At.IsZero() {
		t.Error("event must carry a timestamp")
	}
}

func TestCustomerService_PublishFailureDoesNotFailMutation(t *testing.T) {
	repo := &mockCustomerRepo{
		updateFn: func(ctx context.Context, id int64, f domain.CustomerFields) (domain.Customer, error) {
			return domain.Customer{ID: id, Name: "X"}, nil
		},
	}
	svc := usecases.NewCustomerService(repo, nil, &mockPublisher{err: errors.New("broker down")}, nil)

	name := "X"
	if _, err := svc.Update(context.Background(), 1, domain.CustomerFields{Name: &name}); err != nil {
		t.Fatalf("expected success despite broker failure, got %v", err)
	}
}

func TestCustomerService_ErrorsPassThroughWithoutEvents(t *testing.T) {
	storageErr := &domain.StorageError{Op: "update", Err: errors.New("disk full")}
	repo := &mockCustomerRepo{
		updateFn: func(ctx context.Context, id int64, f domain.CustomerFields) (domain.Customer, error) {
			return domain.Customer{}, storageErr
		},
		createFn: func(ctx context.Context, f domain.CustomerFields) (domain.Customer, error) {
			return domain.Customer{}, &domain.ValidationError{Problems: []string{"name is required"}}
		},
	}
	pub := &mockPublisher{}
	svc := usecases.NewCustomerService(repo, nil, pub, nil)
	ctx := context.Background()

	if _, err := svc.Update(ctx, 1, domain.CustomerFields{}); !errors.Is(err, storageErr) {
		t.Errorf("expected storage error, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CustomerFields{}); !domain.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("failed mutations must not publish, got %d events", len(pub.events))
	}
}

func TestCustomerService_DeleteAbsentPublishesNothing(t *testing.T) {
	repo := &mockCustomerRepo{
		deleteFn: func(ctx context.Context, id int64) (bool, error) { return id == 1, nil },
	}
	pub := &mockPublisher{}
	svc := usecases.NewCustomerService(repo, nil, pub, nil)
	ctx := context.Background()

	if removed, err := svc.Delete(ctx, 5); err != nil || removed {
		t.Fatalf("expected no-op, got removed=%v err=%v", removed, err)
	}
	if removed, err := svc.Delete(ctx, 1); err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.CustomerDeleted || pub.events[0].Customer.ID != 1 {
		t.Errorf("unexpected events %+v", pub.events)
	}
}

func TestCustomerService_GetNotFound(t *testing.T) {
	svc := usecases.NewCustomerService(&mockCustomerRepo{}, nil, nil, nil)
	if _, err := svc.Get(context.Background(), 7); !domain.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCustomerService_ListCacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	docs := &memDocs{}
	cache := newMockCache()

	first, err := registry.Open(ctx, docs, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := usecases.NewCustomerService(first, cache, nil, nil)
	if got, _ := svc.List(ctx); len(got) != 0 {
		t.Fatalf("expected empty registry, got %+v", got)
	}

	// Another process writes the document while the cache keeps the empty list.
	writer, err := registry.Open(ctx, docs, nil)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	name, lat, lon := "A", 1.0, 2.0
	created, err := writer.Create(ctx, domain.CustomerFields{Name: &name, Latitude: &lat, Longitude: &lon})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	restarted, err := registry.Open(ctx, docs, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if restarted.Version() != first.Version() {
		t.Fatalf("expected both opens at version %d, got %d", first.Version(), restarted.Version())
	}
	got, err := usecases.NewCustomerService(restarted, cache, nil, nil).List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0] != created {
		t.Errorf("stale list after reopen: got %+v, want [%+v]", got, created)
	}
}
