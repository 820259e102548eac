package repository

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmployeeRepository_CreateAndGet(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	seedEmployee(t, repo, "m1", entity.RoleManager, nil)
	seedEmployee(t, repo, "e1", entity.RoleEmployee, strPtr("m1"))

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Employee e1", got.Name)
	assert.Equal(t, "e1@example.com", got.Email)
	assert.Equal(t, entity.RoleEmployee, got.SystemRole)
	require.NotNil(t, got.ReportsTo)
	assert.Equal(t, "m1", *got.ReportsTo)
	assert.Nil(t, got.Delegation)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	top, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, top.ReportsTo)
}

func TestEmployeeRepository_GetMissing(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestEmployeeRepository_FindByRoleOrderedByID(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())

	seedEmployee(t, repo, "h2", entity.RoleHRAdmin, nil)
	seedEmployee(t, repo, "h1", entity.RoleHRAdmin, nil)
	seedEmployee(t, repo, "x1", entity.RoleCFO, nil)

	holders, err := repo.FindByRole(context.Background(), entity.RoleHRAdmin)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "h1", holders[0].ID)
	assert.Equal(t, "h2", holders[1].ID)

	none, err := repo.FindByRole(context.Background(), entity.RoleCEO)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEmployeeRepository_UpdateDelegationRoundTrip(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	emp := seedEmployee(t, repo, "m1", entity.RoleManager, nil)
	seedEmployee(t, repo, "d1", entity.RoleDirector, nil)

	emp.Delegation = &entity.Delegation{DelegateID: "d1", DelegateName: "Employee d1", Until: baseTime.Add(48 * time.Hour)}
	emp.SystemRole = entity.RoleDirector
	emp.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, repo.Update(ctx, emp))

	got, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got.Delegation)
	assert.Equal(t, "d1", got.Delegation.DelegateID)
	assert.True(t, baseTime.Add(48*time.Hour).Equal(got.Delegation.Until))
	assert.Equal(t, entity.RoleDirector, got.SystemRole)

	got.Delegation = nil
	require.NoError(t, repo.Update(ctx, got))
	cleared, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, cleared.Delegation)
}

func TestEmployeeRepository_UpdateMissing(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())

	err := repo.Update(context.Background(), &entity.Employee{ID: "ghost", SystemRole: entity.RoleEmployee})
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestEmployeeRepository_DuplicateEmailRejected(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
	seedEmployee(t, repo, "a", entity.RoleEmployee, nil)

	dup := &entity.Employee{ID: "b", Name: "B", Email: "a@example.com", SystemRole: entity.RoleEmployee}
	assert.Error(t, repo.Create(context.Background(), dup))
}

func TestEmployeeRepository_ClearExpiredDelegations(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	expired := seedEmployee(t, repo, "a", entity.RoleManager, nil)
	active := seedEmployee(t, repo, "b", entity.RoleManager, nil)
	seedEmployee(t, repo, "c", entity.RoleManager, nil)

	expired.Delegation = &entity.Delegation{DelegateID: "c", Until: baseTime.Add(-time.Minute)}
	active.Delegation = &entity.Delegation{DelegateID: "c", Until: baseTime.Add(time.Hour)}
	require.NoError(t, repo.Update(ctx, expired))
	require.NoError(t, repo.Update(ctx, active))

	n, err := repo.ClearExpiredDelegations(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, a.Delegation)

	b, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotNil(t, b.Delegation)
}

func TestEmployeeRepository_ClearExpiredDelegationsKeepsRenewed(t *testing.T) {
	repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	emp := seedEmployee(t, repo, "a", entity.RoleManager, nil)
	seedEmployee(t, repo, "c", entity.RoleManager, nil)
	seedEmployee(t, repo, "d", entity.RoleManager, nil)

	emp.Delegation = &entity.Delegation{DelegateID: "c", Until: baseTime.Add(-time.Hour)}
	require.NoError(t, repo.Update(ctx, emp))

	// the sweeper saw the expired delegation; a renewal commits before it clears
	emp.Delegation = &entity.Delegation{DelegateID: "d", Until: baseTime.Add(time.Hour)}
	require.NoError(t, repo.Update(ctx, emp))

	n, err := repo.ClearExpiredDelegations(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.Delegation)
	assert.Equal(t, "d", got.Delegation.DelegateID)
}

func TestEmployeeRepository_ClearExpiredDelegationsBoundary(t *testing.T) {
	tests := []struct {
		name    string
		until   time.Time
		cleared bool
	}{
		{"ended just before", baseTime.Add(-500 * time.Millisecond), true},
		{"ends exactly now", baseTime, true},
		{"ends just after", baseTime.Add(500 * time.Millisecond), false},
		{"ends in a day", baseTime.Add(24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewEmployeeRepository(newTestDB(t), zap.NewNop())
			ctx := context.Background()

			emp := seedEmployee(t, repo, "a", entity.RoleManager, nil)
			seedEmployee(t, repo, "c", entity.RoleManager, nil)
			emp.Delegation = &entity.Delegation{DelegateID: "c", Until: tt.until}
			require.NoError(t, repo.Update(ctx, emp))

			n, err := repo.ClearExpiredDelegations(ctx, baseTime)
			require.NoError(t, err)

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			if tt.cleared {
				assert.Equal(t, 1, n)
				assert.Nil(t, got.Delegation)
			} else {
				assert.Equal(t, 0, n)
				assert.NotNil(t, got.Delegation)
			}
		})
	}
}
