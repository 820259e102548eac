package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const requestColumns = `
	id, employee_id, employee_name, service_id, service_title, payload_json,
	status, current_step_index, assigned_to, steps_json, version, created_at, updated_at`

// RequestRepository implements port.RequestRepository.
// A request row and its history rows are always written in one transaction.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a request and its full history
func (r *RequestRepository) Get(ctx context.Context, id string) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	exec := sqlite.GetExecutor(ctx, r.db)
	req, err := scanRequest(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: request %s", domainwf.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if req.History, err = r.loadHistory(ctx, exec, id); err != nil {
		return nil, err
	}
	return req, nil
}

// Create inserts the request row followed by its initial history
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	payload, steps, err := encodeRequest(req)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(exec sqlite.Executor) error {
		query := `
			INSERT INTO requests (` + requestColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := exec.ExecContext(ctx, query,
			req.ID,
			req.EmployeeID,
			req.EmployeeName,
			req.ServiceID,
			req.ServiceTitle,
			payload,
			string(req.Status),
			req.CurrentStepIndex,
			req.AssignedTo,
			steps,
			req.Version,
			req.CreatedAt.UTC(),
			req.UpdatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create request", zap.String("request_id", req.ID), zap.Error(err))
			return fmt.Errorf("failed to create request: %w", err)
		}

		for i, entry := range req.History {
			if err := r.insertHistory(ctx, exec, req.ID, i+1, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update writes req when the stored version still equals expectedVersion
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request, expectedVersion int64, entry *entity.HistoryEntry) error {
	payload, steps, err := encodeRequest(req)
	if err != nil {
		return err
	}

	err = r.inTx(ctx, func(exec sqlite.Executor) error {
		query := `
			UPDATE requests SET
				payload_json = ?, status = ?, current_step_index = ?, assigned_to = ?,
				steps_json = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
		`
		result, err := exec.ExecContext(ctx, query,
			payload,
			string(req.Status),
			req.CurrentStepIndex,
			req.AssignedTo,
			steps,
			req.UpdatedAt.UTC(),
			req.ID,
			expectedVersion,
		)
		if err != nil {
			r.logger.Error("Failed to update request", zap.String("request_id", req.ID), zap.Error(err))
			return fmt.Errorf("failed to update request: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return r.missOrConflict(ctx, exec, req.ID, expectedVersion)
		}

		if entry == nil {
			return nil
		}
		var seq int
		if err := exec.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM request_history WHERE request_id = ?", req.ID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("failed to get history sequence: %w", err)
		}
		return r.insertHistory(ctx, exec, req.ID, seq, *entry)
	})
	if err != nil {
		return err
	}

	req.Version = expectedVersion + 1
	if entry != nil {
		req.History = append(req.History, *entry)
	}
	return nil
}

// List returns matching requests, newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	var where []string
	var args []interface{}
	if filter.AssigneeID != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.ServiceID != "" {
		where = append(where, "service_id = ?")
		args = append(args, filter.ServiceID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	exec := sqlite.GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, req := range requests {
		if req.History, err = r.loadHistory(ctx, exec, req.ID); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

// inTx joins the caller's transaction or opens one for a multi-row write
func (r *RequestRepository) inTx(ctx context.Context, fn func(exec sqlite.Executor) error) error {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return fn(tx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *RequestRepository) missOrConflict(ctx context.Context, exec sqlite.Executor, id string, expected int64) error {
	var current int64
	err := exec.QueryRowContext(ctx, "SELECT version FROM requests WHERE id = ?", id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: request %s", domainwf.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read request version: %w", err)
	}
	r.logger.Warn("Stale request version",
		zap.String("request_id", id),
		zap.Int64("expected", expected),
		zap.Int64("current", current))
	return fmt.Errorf("%w: request %s is at version %d, expected %d",
		domainwf.ErrConcurrencyConflict, id, current, expected)
}

func (r *RequestRepository) insertHistory(ctx context.Context, exec sqlite.Executor, requestID string, seq int, entry entity.HistoryEntry) error {
	query := `
		INSERT INTO request_history (
			request_id, seq, actor_id, actor_name, action, note, occurred_at, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	key := sql.NullString{String: entry.IdempotencyKey, Valid: entry.IdempotencyKey != ""}
	_, err := exec.ExecContext(ctx, query,
		requestID,
		seq,
		entry.ActorID,
		entry.ActorName,
		entry.Action,
		entry.Note,
		entry.Time.UTC(),
		key,
	)
	if err != nil {
		r.logger.Error("Failed to append history", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (r *RequestRepository) loadHistory(ctx context.Context, exec sqlite.Executor, requestID string) ([]entity.HistoryEntry, error) {
	query := `
		SELECT actor_id, actor_name, action, note, occurred_at, idempotency_key
		FROM request_history
		WHERE request_id = ?
		ORDER BY seq
	`
	rows, err := exec.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to load history", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var history []entity.HistoryEntry
	for rows.Next() {
		var h entity.HistoryEntry
		var key sql.NullString
		if err := rows.Scan(&h.ActorID, &h.ActorName, &h.Action, &h.Note, &h.Time, &key); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.IdempotencyKey = key.String
		history = append(history, h)
	}
	return history, rows.Err()
}

func encodeRequest(req *entity.Request) (string, string, error) {
	payload := req.Payload
	if payload == nil {
		payload = entity.Payload{}
	}
	p, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	steps := req.Steps
	if steps == nil {
		steps = []entity.ApprovalStep{}
	}
	s, err := json.Marshal(steps)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	return string(p), string(s), nil
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var status, payload, steps string

	err := row.Scan(
		&req.ID,
		&req.EmployeeID,
		&req.EmployeeName,
		&req.ServiceID,
		&req.ServiceTitle,
		&payload,
		&status,
		&req.CurrentStepIndex,
		&req.AssignedTo,
		&steps,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = domainwf.State(status)
	if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of %s: %w", req.ID, err)
	}
	if err := json.Unmarshal([]byte(steps), &req.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of %s: %w", req.ID, err)
	}
	return &req, nil
}
