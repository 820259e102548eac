package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/pkg/utils"
	"github.com/google/uuid"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateEmployeeCommand carries a new directory record
type CreateEmployeeCommand struct {
	ID         string
	Name       string
	Email      string
	Department string
	JobTitle   string
	ReportsTo  *string
	SystemRole entity.SystemRole
}

// DirectoryService administers the employee directory the router reads
type DirectoryService interface {
	CreateEmployee(ctx context.Context, cmd CreateEmployeeCommand) (*entity.Employee, error)
	GetEmployee(ctx context.Context, id string) (*entity.Employee, error)
	ListEmployees(ctx context.Context) ([]*entity.Employee, error)

	// SetManager links the employee to a manager; nil clears the link
	SetManager(ctx context.Context, employeeID string, managerID *string) (*entity.Employee, error)
	SetRole(ctx context.Context, employeeID string, role entity.SystemRole) (*entity.Employee, error)

	// SetDelegation redirects the employee's approvals until the given time
	SetDelegation(ctx context.Context, employeeID, delegateID string, until time.Time) (*entity.Employee, error)
	ClearDelegation(ctx context.Context, employeeID string) (*entity.Employee, error)
}

type directoryServiceImpl struct {
	employees port.EmployeeRepository
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// DirectoryOption configures the directory service
type DirectoryOption func(*directoryServiceImpl)

// WithDirectoryClock overrides the clock used for timestamps and expiry checks
func WithDirectoryClock(now func() time.Time) DirectoryOption {
	return func(s *directoryServiceImpl) {
		s.now = now
	}
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	employees port.EmployeeRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...DirectoryOption,
) DirectoryService {
	s := &directoryServiceImpl{
		employees: employees,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEmployee validates and stores a new employee
func (s *directoryServiceImpl) CreateEmployee(ctx context.Context, cmd CreateEmployeeCommand) (*entity.Employee, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domainwf.ErrValidation)
	}
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", domainwf.ErrValidation, err)
	}
	role := cmd.SystemRole
	if role == "" {
		role = entity.RoleEmployee
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown system role %q", domainwf.ErrValidation, role)
	}

	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	emp := &entity.Employee{
		ID:         id,
		Name:       name,
		Email:      email,
		Department: utils.SanitizeString(cmd.Department),
		JobTitle:   utils.SanitizeString(cmd.JobTitle),
		SystemRole: role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if cmd.ReportsTo != nil && *cmd.ReportsTo != "" {
			if *cmd.ReportsTo == id {
				return fmt.Errorf("%w: an employee cannot report to themselves", domainwf.ErrValidation)
			}
			if _, err := s.employees.Get(txCtx, *cmd.ReportsTo); err != nil {
				return fmt.Errorf("manager: %w", err)
			}
			manager := *cmd.ReportsTo
			emp.ReportsTo = &manager
		}
		return s.employees.Create(txCtx, emp)
	})
	if err != nil {
		s.logger.Error("Failed to create employee", "error", err, "employee_id", id)
		return nil, err
	}

	s.logger.Info("Employee created", "employee_id", id, "role", role)
	return emp, nil
}

// GetEmployee returns one directory record
func (s *directoryServiceImpl) GetEmployee(ctx context.Context, id string) (*entity.Employee, error) {
	return s.employees.Get(ctx, id)
}

// ListEmployees returns the whole directory ordered by id
func (s *directoryServiceImpl) ListEmployees(ctx context.Context) ([]*entity.Employee, error) {
	return s.employees.List(ctx)
}

// SetManager rejects self-links and links that would close a reporting cycle
func (s *directoryServiceImpl) SetManager(ctx context.Context, employeeID string, managerID *string) (*entity.Employee, error) {
	return s.modify(ctx, employeeID, "set manager", func(txCtx context.Context, emp *entity.Employee) error {
		if managerID == nil || *managerID == "" {
			emp.ReportsTo = nil
			return nil
		}
		if *managerID == employeeID {
			return fmt.Errorf("%w: an employee cannot report to themselves", domainwf.ErrValidation)
		}
		if err := s.checkNoCycle(txCtx, employeeID, *managerID); err != nil {
			return err
		}
		manager := *managerID
		emp.ReportsTo = &manager
		return nil
	})
}

// SetRole changes the capability tag used by SYSTEM_ROLE steps
func (s *directoryServiceImpl) SetRole(ctx context.Context, employeeID string, role entity.SystemRole) (*entity.Employee, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown system role %q", domainwf.ErrValidation, role)
	}
	return s.modify(ctx, employeeID, "set role", func(_ context.Context, emp *entity.Employee) error {
		emp.SystemRole = role
		return nil
	})
}

// SetDelegation requires an existing delegate other than the employee and a future end
func (s *directoryServiceImpl) SetDelegation(ctx context.Context, employeeID, delegateID string, until time.Time) (*entity.Employee, error) {
	if delegateID == "" {
		return nil, fmt.Errorf("%w: delegate is required", domainwf.ErrValidation)
	}
	if delegateID == employeeID {
		return nil, fmt.Errorf("%w: an employee cannot delegate to themselves", domainwf.ErrValidation)
	}
	if !until.After(s.now()) {
		return nil, fmt.Errorf("%w: delegation must end in the future", domainwf.ErrValidation)
	}

	return s.modify(ctx, employeeID, "set delegation", func(txCtx context.Context, emp *entity.Employee) error {
		delegate, err := s.employees.Get(txCtx, delegateID)
		if err != nil {
			return fmt.Errorf("delegate: %w", err)
		}
		emp.Delegation = &entity.Delegation{
			DelegateID:   delegate.ID,
			DelegateName: delegate.Name,
			Until:        until,
		}
		return nil
	})
}

// ClearDelegation ends a delegation early
func (s *directoryServiceImpl) ClearDelegation(ctx context.Context, employeeID string) (*entity.Employee, error) {
	return s.modify(ctx, employeeID, "clear delegation", func(_ context.Context, emp *entity.Employee) error {
		emp.Delegation = nil
		return nil
	})
}

func (s *directoryServiceImpl) modify(ctx context.Context, employeeID, op string, mutate func(context.Context, *entity.Employee) error) (*entity.Employee, error) {
	var updated *entity.Employee
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		emp, err := s.employees.Get(txCtx, employeeID)
		if err != nil {
			return err
		}
		if err := mutate(txCtx, emp); err != nil {
			return err
		}
		emp.UpdatedAt = s.now()
		if err := s.employees.Update(txCtx, emp); err != nil {
			return err
		}
		updated = emp
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to "+op, "error", err, "employee_id", employeeID)
		return nil, err
	}

	s.logger.Info("Directory updated", "operation", op, "employee_id", employeeID)
	return updated, nil
}

// checkNoCycle walks up from the proposed manager; reaching the employee
// means the new link would close a loop
func (s *directoryServiceImpl) checkNoCycle(ctx context.Context, employeeID, managerID string) error {
	visited := map[string]bool{}
	current := managerID
	for current != "" {
		if current == employeeID {
			return fmt.Errorf("%w: reporting line of %s already passes through %s",
				domainwf.ErrValidation, managerID, employeeID)
		}
		if visited[current] {
			return nil
		}
		visited[current] = true

		emp, err := s.employees.Get(ctx, current)
		if err != nil {
			if current == managerID {
				return fmt.Errorf("manager: %w", err)
			}
			return err
		}
		current = emp.ManagerID()
	}
	return nil
}
