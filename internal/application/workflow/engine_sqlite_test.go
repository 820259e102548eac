package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/catalog"
	"github.com/garyjia/employee-portal/internal/application/routing"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/repository"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/employee-portal/pkg/database"
)

// sqliteFixture wires the engine the way the container does for driver=sqlite
type sqliteFixture struct {
	engine  WorkflowEngine
	catalog *catalog.Catalog
	txm     *sqlite.DB
}

func newSQLiteFixture(t *testing.T, maxOpenConns int) *sqliteFixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "portal.db"),
		MaxOpenConns: maxOpenConns,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded())

	employees := repository.NewEmployeeRepository(db.DB, logger)
	services := repository.NewServiceRepository(db.DB, logger)
	requests := repository.NewRequestRepository(db.DB, logger)

	ctx := context.Background()
	now := time.Now().UTC()
	for _, emp := range []*entity.Employee{
		{ID: "E", Name: "Eve", Email: "eve@example.com", ReportsTo: strPtr("M"), SystemRole: entity.RoleEmployee},
		{ID: "H1", Name: "Hana", Email: "hana@example.com", SystemRole: entity.RoleHRAdmin},
		{ID: "M", Name: "Mallory", Email: "mallory@example.com", SystemRole: entity.RoleManager},
	} {
		emp.CreatedAt, emp.UpdatedAt = now, now
		require.NoError(t, employees.Create(ctx, emp))
	}
	require.NoError(t, services.Upsert(ctx, &entity.ServiceDefinition{
		ID:    "permission",
		Title: "Permission Request",
		Fields: []entity.FormField{
			{ID: "type", Type: entity.FieldSelect, Required: true, Options: []string{"annual", "sick"}},
			{ID: "days", Type: entity.FieldNumber, Required: true},
		},
		Steps: []entity.ApprovalStep{
			{Order: 1, Kind: entity.StepReportsTo},
			{Order: 2, Kind: entity.StepSystemRole, RoleValue: entity.RoleHRAdmin},
		},
		UpdatedAt: now,
	}))

	txm := sqlite.NewDB(db.DB, logger)
	cat := catalog.New(services, time.Minute, catalog.WithTxDetector(sqlite.InTransaction))
	return &sqliteFixture{
		engine:  NewEngine(employees, cat, requests, txm, routing.NewRouter(employees), &mockLogger{}),
		catalog: cat,
		txm:     txm,
	}
}

func (f *sqliteFixture) create(t *testing.T, asDraft bool) *entity.Request {
	t.Helper()
	req, err := f.engine.Create(context.Background(), CreateCommand{
		RequesterID: "E",
		ServiceID:   "permission",
		Payload:     entity.Payload{"type": "annual", "days": 2.0},
		AsDraft:     asDraft,
	})
	require.NoError(t, err)
	return req
}

func TestSQLiteEngine_TwoStepApproval(t *testing.T) {
	f := newSQLiteFixture(t, 4)
	ctx := context.Background()

	req := f.create(t, false)
	assert.Equal(t, domainwf.StatePending, req.Status)
	assert.Equal(t, "M", req.AssignedTo)
	assert.Equal(t, 0, req.CurrentStepIndex)

	req, err := f.engine.Approve(ctx, req.ID, "M", "")
	require.NoError(t, err)
	assert.Equal(t, "H1", req.AssignedTo)
	assert.Equal(t, 1, req.CurrentStepIndex)

	req, err = f.engine.Approve(ctx, req.ID, "H1", "ok")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, req.Status)
	assert.Empty(t, req.AssignedTo)

	stored, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, stored.Status)
	assert.Equal(t, int64(3), stored.Version)
	require.Len(t, stored.History, 3)
	assert.Equal(t, entity.ActionApproved, stored.History[2].Action)
	assert.Equal(t, "ok", stored.History[2].Note)

	_, err = f.engine.Approve(ctx, req.ID, "H1", "")
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func TestSQLiteEngine_ReturnAndResubmit(t *testing.T) {
	f := newSQLiteFixture(t, 4)
	ctx := context.Background()

	draft := f.create(t, true)
	req, err := f.engine.Submit(ctx, draft.ID, "E")
	require.NoError(t, err)
	assert.Equal(t, "M", req.AssignedTo)

	req, err = f.engine.ReturnForEdit(ctx, req.ID, "M", "add dates")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateReturned, req.Status)
	assert.Equal(t, "E", req.AssignedTo)

	_, err = f.engine.UpdatePayload(ctx, req.ID, "E", entity.Payload{"type": "sick", "days": 1.0})
	require.NoError(t, err)

	req, err = f.engine.Submit(ctx, req.ID, "E")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, req.Status)
	assert.Equal(t, "M", req.AssignedTo)
	assert.Equal(t, 0, req.CurrentStepIndex)

	stored, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "sick", stored.Payload["type"])
	assert.Len(t, stored.History, 4, "draft, submit, return, resubmit")
}

func TestSQLiteEngine_ConcurrentApproveHasOneWinner(t *testing.T) {
	f := newSQLiteFixture(t, 8)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		req := f.create(t, false)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.Approve(ctx, req.ID, "M", "")
				if err != nil {
					assert.True(t,
						errors.Is(err, domainwf.ErrUnauthorized) || errors.Is(err, domainwf.ErrConcurrencyConflict),
						"unexpected error: %v", err)
					return
				}
				mu.Lock()
				wins++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
		stored, err := f.engine.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.CurrentStepIndex)
		assert.Equal(t, "H1", stored.AssignedTo)
		assert.Len(t, stored.History, 2)
	}
}

func TestSQLiteEngine_CatalogMissDuringTransactionOnOneConnection(t *testing.T) {
	f := newSQLiteFixture(t, 1)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- f.txm.WithTransaction(ctx, func(txCtx context.Context) error {
			// a plain read misses the cache and waits for the connection this transaction holds
			go func() { _, _ = f.catalog.Get(context.Background(), "permission") }()
			time.Sleep(50 * time.Millisecond)

			svc, err := f.catalog.Get(txCtx, "permission")
			if err != nil {
				return err
			}
			if len(svc.Steps) != 2 {
				return errors.New("unexpected step count")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transaction blocked on the catalog read")
	}
}

func TestSQLiteEngine_CreateRacingCatalogReadsOnOneConnection(t *testing.T) {
	f := newSQLiteFixture(t, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			f.catalog.InvalidateAll()
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.catalog.Get(context.Background(), "permission")
				assert.NoError(t, err)
			}()
			_, err := f.engine.Create(context.Background(), CreateCommand{
				RequesterID: "E",
				ServiceID:   "permission",
				Payload:     entity.Payload{"type": "annual", "days": 2.0},
			})
			assert.NoError(t, err)
			wg.Wait()
		}
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("engine and catalog readers deadlocked on the single connection")
	}

	all, err := f.engine.ListRequests(context.Background(), entity.RequestFilter{EmployeeID: "E"})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}
