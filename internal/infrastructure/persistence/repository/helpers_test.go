package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
	"github.com/garyjia/employee-portal/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "portal.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunEmbedded())
	return db.DB
}

func strPtr(s string) *string { return &s }

func seedEmployee(t *testing.T, repo interface {
	Create(context.Context, *entity.Employee) error
}, id string, role entity.SystemRole, manager *string) *entity.Employee {
	t.Helper()
	emp := &entity.Employee{
		ID:         id,
		Name:       "Employee " + id,
		Email:      id + "@example.com",
		Department: "Engineering",
		JobTitle:   "Engineer",
		ReportsTo:  manager,
		SystemRole: role,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	require.NoError(t, repo.Create(context.Background(), emp))
	return emp
}

func permissionService() *entity.ServiceDefinition {
	return &entity.ServiceDefinition{
		ID:    "permission",
		Title: "Permission request",
		Icon:  "calendar",
		Fields: []entity.FormField{
			{ID: "days", Label: "Days", Type: entity.FieldNumber, Required: true},
			{ID: "reason", Label: "Reason", Type: entity.FieldSelect, Options: []string{"vacation", "sick"}},
		},
		Steps: []entity.ApprovalStep{
			{Order: 1, Kind: entity.StepReportsTo},
			{Order: 2, Kind: entity.StepSystemRole, RoleValue: entity.RoleHRAdmin},
		},
		UpdatedAt: baseTime,
	}
}
