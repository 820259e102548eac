package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type requestFixture struct {
	db    *sql.DB
	repo  *RequestRepository
	steps []entity.ApprovalStep
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	db := newTestDB(t)
	employees := NewEmployeeRepository(db, zap.NewNop())
	seedEmployee(t, employees, "m1", entity.RoleManager, nil)
	seedEmployee(t, employees, "e1", entity.RoleEmployee, strPtr("m1"))

	svc := permissionService()
	require.NoError(t, NewServiceRepository(db, zap.NewNop()).Upsert(context.Background(), svc))

	return &requestFixture{
		db:    db,
		repo:  NewRequestRepository(db, zap.NewNop()).(*RequestRepository),
		steps: svc.OrderedSteps(),
	}
}

func (f *requestFixture) pending(id string) *entity.Request {
	return &entity.Request{
		ID:           id,
		EmployeeID:   "e1",
		EmployeeName: "Employee e1",
		ServiceID:    "permission",
		ServiceTitle: "Permission request",
		Payload:      entity.Payload{"days": 2.0, "reason": "vacation"},
		Status:       domainwf.StatePending,
		AssignedTo:   "m1",
		Steps:        f.steps,
		History: []entity.HistoryEntry{
			{ActorID: "e1", ActorName: "Employee e1", Action: entity.ActionSubmitted, Time: baseTime},
		},
		Version:   1,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.Create(ctx, f.pending("r1")))

	got, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, got.Status)
	assert.Equal(t, "m1", got.AssignedTo)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, f.steps, got.Steps)
	days, ok := got.Payload.Number("days")
	assert.True(t, ok)
	assert.Equal(t, 2.0, days)
	require.Len(t, got.History, 1)
	assert.Equal(t, entity.ActionSubmitted, got.History[0].Action)
	assert.True(t, baseTime.Equal(got.History[0].Time))
}

func TestRequestRepository_GetMissing(t *testing.T) {
	f := newRequestFixture(t)

	_, err := f.repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestRequestRepository_UpdateAppendsHistory(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Create(ctx, f.pending("r1")))

	req, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	req.CurrentStepIndex = 1
	req.AssignedTo = "h1"
	req.UpdatedAt = baseTime.Add(time.Hour)
	entry := &entity.HistoryEntry{
		ActorID: "m1", ActorName: "Employee m1", Action: entity.ActionApproved,
		Time: baseTime.Add(time.Hour), IdempotencyKey: "k-1",
	}

	require.NoError(t, f.repo.Update(ctx, req, 1, entry))
	assert.Equal(t, int64(2), req.Version)
	assert.Len(t, req.History, 2)

	got, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "h1", got.AssignedTo)
	assert.Equal(t, 1, got.CurrentStepIndex)
	require.Len(t, got.History, 2)
	assert.Equal(t, entity.ActionApproved, got.History[1].Action)
	assert.Equal(t, "k-1", got.History[1].IdempotencyKey)
	assert.True(t, got.HasIdempotencyKey("k-1"))
}

func TestRequestRepository_UpdateWithoutEntry(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Create(ctx, f.pending("r1")))

	req, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	req.Payload["days"] = 3.0

	require.NoError(t, f.repo.Update(ctx, req, 1, nil))

	got, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	days, _ := got.Payload.Number("days")
	assert.Equal(t, 3.0, days)
}

func TestRequestRepository_StaleVersionConflicts(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Create(ctx, f.pending("r1")))

	first, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	second, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)

	entry := &entity.HistoryEntry{ActorID: "m1", ActorName: "m1", Action: entity.ActionApproved, Time: baseTime}
	require.NoError(t, f.repo.Update(ctx, first, 1, entry))

	err = f.repo.Update(ctx, second, 1, entry)
	assert.ErrorIs(t, err, domainwf.ErrConcurrencyConflict)
	assert.Equal(t, int64(1), second.Version, "failed update must not touch the caller's copy")

	got, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, got.History, 2, "conflicting write must not append history")
}

func TestRequestRepository_UpdateMissing(t *testing.T) {
	f := newRequestFixture(t)

	err := f.repo.Update(context.Background(), f.pending("ghost"), 1, nil)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestRequestRepository_RollbackKeepsStoreUnchanged(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Create(ctx, f.pending("r1")))

	txm := sqlite.NewDB(f.db, zap.NewNop())
	err := txm.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := f.repo.Get(txCtx, "r1")
		if err != nil {
			return err
		}
		req.Status = domainwf.StateApproved
		entry := &entity.HistoryEntry{ActorID: "m1", ActorName: "m1", Action: entity.ActionApproved, Time: baseTime}
		if err := f.repo.Update(txCtx, req, req.Version, entry); err != nil {
			return err
		}
		return domainwf.ErrRouting
	})
	assert.ErrorIs(t, err, domainwf.ErrRouting)

	got, err := f.repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domainwf.StatePending, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.History, 1)
}

func TestRequestRepository_ListFilters(t *testing.T) {
	f := newRequestFixture(t)
	ctx := context.Background()

	r1 := f.pending("r1")
	r2 := f.pending("r2")
	r2.CreatedAt = baseTime.Add(time.Hour)
	r3 := f.pending("r3")
	r3.Status = domainwf.StateDraft
	r3.AssignedTo = ""
	r3.CreatedAt = baseTime.Add(2 * time.Hour)
	for _, r := range []*entity.Request{r1, r2, r3} {
		require.NoError(t, f.repo.Create(ctx, r))
	}

	tests := []struct {
		name   string
		filter entity.RequestFilter
		want   []string
	}{
		{name: "all newest first", filter: entity.RequestFilter{}, want: []string{"r3", "r2", "r1"}},
		{name: "inbox", filter: entity.RequestFilter{AssigneeID: "m1"}, want: []string{"r2", "r1"}},
		{name: "by status", filter: entity.RequestFilter{Status: domainwf.StateDraft}, want: []string{"r3"}},
		{name: "by employee with limit", filter: entity.RequestFilter{EmployeeID: "e1", Limit: 1}, want: []string{"r3"}},
		{name: "no match", filter: entity.RequestFilter{ServiceID: "travel"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.repo.List(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
				assert.NotEmpty(t, r.History)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
