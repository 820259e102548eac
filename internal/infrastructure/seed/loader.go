// Package seed loads directory and catalog fixtures from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// Employee is the YAML shape of a directory record
type Employee struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Email      string            `yaml:"email"`
	Department string            `yaml:"department"`
	JobTitle   string            `yaml:"job_title"`
	ReportsTo  string            `yaml:"reports_to"`
	SystemRole entity.SystemRole `yaml:"system_role"`
}

// Service is the YAML shape of a catalog entry
type Service struct {
	ID     string                `yaml:"id"`
	Title  string                `yaml:"title"`
	Icon   string                `yaml:"icon"`
	Fields []entity.FormField    `yaml:"fields"`
	Steps  []entity.ApprovalStep `yaml:"steps"`
}

// File is the whole seed document
type File struct {
	Employees []Employee `yaml:"employees"`
	Services  []Service  `yaml:"services"`
}

// Result counts what Apply wrote
type Result struct {
	EmployeesCreated int
	EmployeesUpdated int
	ServicesUpserted int
}

// Loader applies seed files through the repositories
type Loader struct {
	employees port.EmployeeRepository
	services  port.ServiceRepository
	txManager port.TransactionManager
	logger    *zap.Logger
	now       func() time.Time
}

// NewLoader creates a new seed loader
func NewLoader(
	employees port.EmployeeRepository,
	services port.ServiceRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
) *Loader {
	return &Loader{
		employees: employees,
		services:  services,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// Parse reads and validates a seed file
func Parse(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks ids, roles, manager references and step kinds
func (f *File) Validate() error {
	ids := map[string]bool{}
	emails := map[string]bool{}
	for _, e := range f.Employees {
		if e.ID == "" || e.Name == "" || e.Email == "" {
			return fmt.Errorf("%w: employee needs id, name and email", domainwf.ErrValidation)
		}
		if ids[e.ID] {
			return fmt.Errorf("%w: duplicate employee id %s", domainwf.ErrValidation, e.ID)
		}
		if emails[e.Email] {
			return fmt.Errorf("%w: duplicate email %s", domainwf.ErrValidation, e.Email)
		}
		if !e.SystemRole.IsValid() {
			return fmt.Errorf("%w: employee %s has unknown role %q", domainwf.ErrValidation, e.ID, e.SystemRole)
		}
		ids[e.ID] = true
		emails[e.Email] = true
	}
	for _, e := range f.Employees {
		if e.ReportsTo == e.ID && e.ID != "" {
			return fmt.Errorf("%w: employee %s reports to themselves", domainwf.ErrValidation, e.ID)
		}
	}

	services := map[string]bool{}
	for _, s := range f.Services {
		if s.ID == "" || s.Title == "" {
			return fmt.Errorf("%w: service needs id and title", domainwf.ErrValidation)
		}
		if services[s.ID] {
			return fmt.Errorf("%w: duplicate service id %s", domainwf.ErrValidation, s.ID)
		}
		services[s.ID] = true

		for _, step := range s.Steps {
			switch step.Kind {
			case entity.StepReportsTo:
			case entity.StepSystemRole:
				if !step.RoleValue.IsValid() {
					return fmt.Errorf("%w: service %s step %d has unknown role %q",
						domainwf.ErrValidation, s.ID, step.Order, step.RoleValue)
				}
			default:
				return fmt.Errorf("%w: service %s step %d has unknown kind %q",
					domainwf.ErrValidation, s.ID, step.Order, step.Kind)
			}
		}
	}
	return nil
}

// Apply creates missing employees, updates existing ones and upserts every
// service, all in one transaction. Delegations already in the store are kept.
func (l *Loader) Apply(ctx context.Context, f *File) (*Result, error) {
	result := &Result{}
	now := l.now()

	err := l.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, e := range f.Employees {
			emp := &entity.Employee{
				ID:         e.ID,
				Name:       e.Name,
				Email:      e.Email,
				Department: e.Department,
				JobTitle:   e.JobTitle,
				SystemRole: e.SystemRole,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if e.ReportsTo != "" {
				manager := e.ReportsTo
				emp.ReportsTo = &manager
			}

			existing, err := l.employees.Get(txCtx, e.ID)
			switch {
			case errors.Is(err, domainwf.ErrNotFound):
				if err := l.employees.Create(txCtx, emp); err != nil {
					return fmt.Errorf("seed employee %s: %w", e.ID, err)
				}
				result.EmployeesCreated++
			case err != nil:
				return err
			default:
				emp.CreatedAt = existing.CreatedAt
				emp.Delegation = existing.Delegation
				if err := l.employees.Update(txCtx, emp); err != nil {
					return fmt.Errorf("seed employee %s: %w", e.ID, err)
				}
				result.EmployeesUpdated++
			}
		}

		for _, s := range f.Services {
			svc := &entity.ServiceDefinition{
				ID:        s.ID,
				Title:     s.Title,
				Icon:      s.Icon,
				Fields:    s.Fields,
				Steps:     s.Steps,
				UpdatedAt: now,
			}
			if err := l.services.Upsert(txCtx, svc); err != nil {
				return fmt.Errorf("seed service %s: %w", s.ID, err)
			}
			result.ServicesUpserted++
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to apply seed", zap.Error(err))
		return nil, err
	}

	l.logger.Info("Seed applied",
		zap.Int("employees_created", result.EmployeesCreated),
		zap.Int("employees_updated", result.EmployeesUpdated),
		zap.Int("services", result.ServicesUpserted))
	return result, nil
}

// LoadFile parses and applies a seed file
func (l *Loader) LoadFile(ctx context.Context, path string) (*Result, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return l.Apply(ctx, f)
}
