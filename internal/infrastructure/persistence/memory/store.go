// Package memory keeps the directory, catalog and request documents in
// process memory. It honours the same version and not-found contracts as the
// sqlite repositories.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// Store holds all documents behind one lock
type Store struct {
	mu        sync.RWMutex
	employees map[string]*entity.Employee
	services  map[string]*entity.ServiceDefinition
	requests  map[string]*entity.Request
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		employees: make(map[string]*entity.Employee),
		services:  make(map[string]*entity.ServiceDefinition),
		requests:  make(map[string]*entity.Request),
	}
}

// Employees returns the directory view of the store
func (s *Store) Employees() port.EmployeeRepository { return &employeeRepo{s} }

// Services returns the catalog view of the store
func (s *Store) Services() port.ServiceRepository { return &serviceRepo{s} }

// Requests returns the request view of the store
func (s *Store) Requests() port.RequestRepository { return &requestRepo{s} }

// TxManager runs fn directly. Every engine write is a single versioned
// Update, so the version check alone serializes competing transitions.
type TxManager struct{}

// WithTransaction implements port.TransactionManager
func (TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type employeeRepo struct{ s *Store }

func (r *employeeRepo) Get(_ context.Context, id string) (*entity.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	emp, ok := r.s.employees[id]
	if !ok {
		return nil, fmt.Errorf("%w: employee %s", domainwf.ErrNotFound, id)
	}
	return cloneEmployee(emp), nil
}

func (r *employeeRepo) FindByRole(_ context.Context, role entity.SystemRole) ([]*entity.Employee, error) {
	return r.filter(func(e *entity.Employee) bool { return e.SystemRole == role }), nil
}

func (r *employeeRepo) List(_ context.Context) ([]*entity.Employee, error) {
	return r.filter(func(*entity.Employee) bool { return true }), nil
}

func (r *employeeRepo) Create(_ context.Context, emp *entity.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.employees[emp.ID]; exists {
		return fmt.Errorf("employee %s already exists", emp.ID)
	}
	for _, other := range r.s.employees {
		if other.Email == emp.Email {
			return fmt.Errorf("email %s already in use", emp.Email)
		}
	}
	r.s.employees[emp.ID] = cloneEmployee(emp)
	return nil
}

func (r *employeeRepo) Update(_ context.Context, emp *entity.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.employees[emp.ID]; !exists {
		return fmt.Errorf("%w: employee %s", domainwf.ErrNotFound, emp.ID)
	}
	r.s.employees[emp.ID] = cloneEmployee(emp)
	return nil
}

func (r *employeeRepo) ClearExpiredDelegations(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cleared := 0
	for _, emp := range r.s.employees {
		if emp.Delegation != nil && !emp.Delegation.IsActive(now) {
			emp.Delegation = nil
			emp.UpdatedAt = now
			cleared++
		}
	}
	return cleared, nil
}

func (r *employeeRepo) filter(keep func(*entity.Employee) bool) []*entity.Employee {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Employee
	for _, emp := range r.s.employees {
		if keep(emp) {
			out = append(out, cloneEmployee(emp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneEmployee(e *entity.Employee) *entity.Employee {
	out := *e
	if e.ReportsTo != nil {
		manager := *e.ReportsTo
		out.ReportsTo = &manager
	}
	if e.Delegation != nil {
		d := *e.Delegation
		out.Delegation = &d
	}
	return &out
}

type serviceRepo struct{ s *Store }

func (r *serviceRepo) Get(_ context.Context, id string) (*entity.ServiceDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	svc, ok := r.s.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: service %s", domainwf.ErrNotFound, id)
	}
	return cloneService(svc), nil
}

func (r *serviceRepo) List(_ context.Context) ([]*entity.ServiceDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entity.ServiceDefinition, 0, len(r.s.services))
	for _, svc := range r.s.services {
		out = append(out, cloneService(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *serviceRepo) Upsert(_ context.Context, svc *entity.ServiceDefinition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.services[svc.ID] = cloneService(svc)
	return nil
}

func cloneService(s *entity.ServiceDefinition) *entity.ServiceDefinition {
	out := *s
	out.Fields = make([]entity.FormField, len(s.Fields))
	for i, f := range s.Fields {
		f.Options = append([]string(nil), f.Options...)
		out.Fields[i] = f
	}
	out.Steps = append([]entity.ApprovalStep(nil), s.Steps...)
	return &out
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Get(_ context.Context, id string) (*entity.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", domainwf.ErrNotFound, id)
	}
	return req.Clone(), nil
}

func (r *requestRepo) Create(_ context.Context, req *entity.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	r.s.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) Update(_ context.Context, req *entity.Request, expectedVersion int64, entry *entity.HistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.requests[req.ID]
	if !ok {
		return fmt.Errorf("%w: request %s", domainwf.ErrNotFound, req.ID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: request %s is at version %d, expected %d",
			domainwf.ErrConcurrencyConflict, req.ID, stored.Version, expectedVersion)
	}

	next := req.Clone()
	next.History = append([]entity.HistoryEntry(nil), stored.History...)
	if entry != nil {
		next.History = append(next.History, *entry)
	}
	next.Version = expectedVersion + 1
	r.s.requests[req.ID] = next

	req.Version = next.Version
	req.History = append([]entity.HistoryEntry(nil), next.History...)
	return nil
}

func (r *requestRepo) List(_ context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Request
	for _, req := range r.s.requests {
		if filter.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

var _ port.TransactionManager = TxManager{}
