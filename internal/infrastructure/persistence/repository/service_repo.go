package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ServiceRepository implements port.ServiceRepository. Fields and steps are
// stored as JSON documents.
type ServiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewServiceRepository creates a new service definition repository
func NewServiceRepository(db *sql.DB, logger *zap.Logger) port.ServiceRepository {
	return &ServiceRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a service definition by id
func (r *ServiceRepository) Get(ctx context.Context, id string) (*entity.ServiceDefinition, error) {
	query := `
		SELECT id, title, icon, fields_json, steps_json, updated_at
		FROM services
		WHERE id = ?
	`

	svc, err := scanService(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: service %s", domainwf.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get service", zap.String("service_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

// List returns every service ordered by id
func (r *ServiceRepository) List(ctx context.Context) ([]*entity.ServiceDefinition, error) {
	query := `
		SELECT id, title, icon, fields_json, steps_json, updated_at
		FROM services
		ORDER BY id
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list services", zap.Error(err))
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*entity.ServiceDefinition
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// Upsert inserts or replaces a service definition
func (r *ServiceRepository) Upsert(ctx context.Context, svc *entity.ServiceDefinition) error {
	fields, err := json.Marshal(svc.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}
	steps, err := json.Marshal(svc.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO services (id, title, icon, fields_json, steps_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			icon = excluded.icon,
			fields_json = excluded.fields_json,
			steps_json = excluded.steps_json,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		svc.ID,
		svc.Title,
		svc.Icon,
		string(fields),
		string(steps),
		svc.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert service", zap.String("service_id", svc.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert service: %w", err)
	}
	return nil
}

func scanService(row rowScanner) (*entity.ServiceDefinition, error) {
	var svc entity.ServiceDefinition
	var fields, steps string

	if err := row.Scan(&svc.ID, &svc.Title, &svc.Icon, &fields, &steps, &svc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &svc.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", svc.ID, err)
	}
	if err := json.Unmarshal([]byte(steps), &svc.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of %s: %w", svc.ID, err)
	}
	return &svc, nil
}
