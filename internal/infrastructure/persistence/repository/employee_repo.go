package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const employeeColumns = `
	id, name, email, department, job_title, reports_to, system_role,
	delegate_id, delegate_name, delegation_until, created_at, updated_at`

// EmployeeRepository implements port.EmployeeRepository
type EmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB, logger *zap.Logger) port.EmployeeRepository {
	return &EmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves an employee by id
func (r *EmployeeRepository) Get(ctx context.Context, id string) (*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = ?`

	emp, err := scanEmployee(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: employee %s", domainwf.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get employee", zap.String("employee_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// FindByRole returns all holders of a role ordered by id
func (r *EmployeeRepository) FindByRole(ctx context.Context, role entity.SystemRole) ([]*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE system_role = ? ORDER BY id`
	return r.query(ctx, "find employees by role", query, string(role))
}

// List returns every employee ordered by id
func (r *EmployeeRepository) List(ctx context.Context) ([]*entity.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees ORDER BY id`
	return r.query(ctx, "list employees", query)
}

// Create inserts a new employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *entity.Employee) error {
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	delegateID, delegateName, until := delegationColumns(emp.Delegation)
	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		emp.ID,
		emp.Name,
		emp.Email,
		emp.Department,
		emp.JobTitle,
		nullString(emp.ReportsTo),
		string(emp.SystemRole),
		delegateID,
		delegateName,
		until,
		emp.CreatedAt.UTC(),
		emp.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create employee", zap.String("employee_id", emp.ID), zap.Error(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an employee
func (r *EmployeeRepository) Update(ctx context.Context, emp *entity.Employee) error {
	query := `
		UPDATE employees SET
			name = ?, email = ?, department = ?, job_title = ?, reports_to = ?,
			system_role = ?, delegate_id = ?, delegate_name = ?, delegation_until = ?,
			updated_at = ?
		WHERE id = ?
	`

	delegateID, delegateName, until := delegationColumns(emp.Delegation)
	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		emp.Name,
		emp.Email,
		emp.Department,
		emp.JobTitle,
		nullString(emp.ReportsTo),
		string(emp.SystemRole),
		delegateID,
		delegateName,
		until,
		emp.UpdatedAt.UTC(),
		emp.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update employee", zap.String("employee_id", emp.ID), zap.Error(err))
		return fmt.Errorf("failed to update employee: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: employee %s", domainwf.ErrNotFound, emp.ID)
	}
	return nil
}

// ClearExpiredDelegations drops every delegation whose end is not after now.
// The expiry check and the clear are one statement, so a delegation renewed
// concurrently is never wiped.
func (r *EmployeeRepository) ClearExpiredDelegations(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE employees
		SET delegate_id = NULL, delegate_name = NULL, delegation_until = NULL, updated_at = ?
		WHERE delegate_id IS NOT NULL AND delegation_until <= ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, now.UTC(), now.UTC())
	if err != nil {
		r.logger.Error("Failed to clear expired delegations", zap.Error(err))
		return 0, fmt.Errorf("failed to clear expired delegations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

func (r *EmployeeRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Employee, error) {
	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var employees []*entity.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmployee(row rowScanner) (*entity.Employee, error) {
	var emp entity.Employee
	var role string
	var reportsTo, delegateID, delegateName sql.NullString
	var until sql.NullTime

	err := row.Scan(
		&emp.ID,
		&emp.Name,
		&emp.Email,
		&emp.Department,
		&emp.JobTitle,
		&reportsTo,
		&role,
		&delegateID,
		&delegateName,
		&until,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	emp.SystemRole = entity.SystemRole(role)
	if reportsTo.Valid && reportsTo.String != "" {
		manager := reportsTo.String
		emp.ReportsTo = &manager
	}
	if delegateID.Valid && until.Valid {
		emp.Delegation = &entity.Delegation{
			DelegateID:   delegateID.String,
			DelegateName: delegateName.String,
			Until:        until.Time,
		}
	}
	return &emp, nil
}

func delegationColumns(d *entity.Delegation) (sql.NullString, sql.NullString, sql.NullTime) {
	if d == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: d.DelegateID, Valid: true},
		sql.NullString{String: d.DelegateName, Valid: true},
		sql.NullTime{Time: d.Until.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
