package port

import (
	"context"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
)

// EmployeeRepository defines directory persistence.
// Lookups of missing ids return an error wrapping workflow.ErrNotFound.
type EmployeeRepository interface {
	Get(ctx context.Context, id string) (*entity.Employee, error)

	// FindByRole returns every holder of the role ordered by employee id
	FindByRole(ctx context.Context, role entity.SystemRole) ([]*entity.Employee, error)

	Create(ctx context.Context, emp *entity.Employee) error
	Update(ctx context.Context, emp *entity.Employee) error
	List(ctx context.Context) ([]*entity.Employee, error)

	// ClearExpiredDelegations removes delegations whose Until is not after now
	ClearExpiredDelegations(ctx context.Context, now time.Time) (int, error)
}

// ServiceRepository defines catalog persistence
type ServiceRepository interface {
	Get(ctx context.Context, id string) (*entity.ServiceDefinition, error)
	List(ctx context.Context) ([]*entity.ServiceDefinition, error)
	Upsert(ctx context.Context, svc *entity.ServiceDefinition) error
}

// RequestRepository is the durable store of requests and their history
type RequestRepository interface {
	Get(ctx context.Context, id string) (*entity.Request, error)

	// Create inserts the request with its initial history
	Create(ctx context.Context, req *entity.Request) error

	// Update writes req only if the stored version equals expectedVersion,
	// appending entry (if any) to the history in the same write. On success
	// req.Version is incremented and entry is appended to req.History.
	// A stale version yields workflow.ErrConcurrencyConflict.
	Update(ctx context.Context, req *entity.Request, expectedVersion int64, entry *entity.HistoryEntry) error

	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ServiceCatalog is the read side of the catalog used while routing
type ServiceCatalog interface {
	Get(ctx context.Context, id string) (*entity.ServiceDefinition, error)
}
