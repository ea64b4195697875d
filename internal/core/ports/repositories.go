package ports

import (
	"context"

	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// DocumentStore persists the whole customer set as one durable document.
// Save replaces the document wholesale; Load of a missing document returns
// an empty slice.
type DocumentStore interface {
	Load(ctx context.Context) ([]domain.Customer, error)
	Save(ctx context.Context, customers []domain.Customer) error
}

// CustomerRepository owns the customer collection and id assignment.
type CustomerRepository interface {
	List() []domain.Customer
	Get(id int64) (domain.Customer, error)
	Create(ctx context.Context, fields domain.CustomerFields) (domain.Customer, error)
	Update(ctx context.Context, id int64, fields domain.CustomerFields) (domain.Customer, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Version() uint64
	// Epoch identifies one Open of the durable document. Versions are only
	// comparable within an epoch.
	Epoch() string
}
