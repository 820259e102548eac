package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) (DirectoryService, *memory.Store) {
	store := newStore(t)
	svc := NewDirectoryService(store.Employees(), memory.TxManager{}, fakeLogger{},
		WithDirectoryClock(func() time.Time { return fixedNow }))
	return svc, store
}

func strp(s string) *string { return &s }

func TestDirectoryService_CreateEmployee(t *testing.T) {
	svc, _ := newDirectory(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     CreateEmployeeCommand
		wantErr error
	}{
		{
			name: "valid with manager",
			cmd:  CreateEmployeeCommand{ID: "new", Name: " Nia ", Email: "Nia@Corp.Example", ReportsTo: strp("mgr")},
		},
		{
			name:    "blank name",
			cmd:     CreateEmployeeCommand{Name: "  ", Email: "x@corp.example"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "bad email",
			cmd:     CreateEmployeeCommand{Name: "X", Email: "not-an-email"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "unknown role",
			cmd:     CreateEmployeeCommand{Name: "X", Email: "x@corp.example", SystemRole: "INTERN"},
			wantErr: domainwf.ErrValidation,
		},
		{
			name:    "missing manager",
			cmd:     CreateEmployeeCommand{Name: "X", Email: "x@corp.example", ReportsTo: strp("ghost")},
			wantErr: domainwf.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emp, err := svc.CreateEmployee(ctx, tt.cmd)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Nia", emp.Name)
			assert.Equal(t, "nia@corp.example", emp.Email)
			assert.Equal(t, entity.RoleEmployee, emp.SystemRole)
			assert.Equal(t, "mgr", emp.ManagerID())
		})
	}
}

func TestDirectoryService_CreateEmployeeGeneratesID(t *testing.T) {
	svc, _ := newDirectory(t)

	emp, err := svc.CreateEmployee(context.Background(), CreateEmployeeCommand{Name: "Gen", Email: "gen@corp.example"})
	require.NoError(t, err)
	assert.NotEmpty(t, emp.ID)

	got, err := svc.GetEmployee(context.Background(), emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gen", got.Name)
}

func TestDirectoryService_SetManager(t *testing.T) {
	svc, _ := newDirectory(t)
	ctx := context.Background()

	t.Run("self link rejected", func(t *testing.T) {
		_, err := svc.SetManager(ctx, "emp", strp("emp"))
		assert.ErrorIs(t, err, domainwf.ErrValidation)
	})

	t.Run("cycle rejected", func(t *testing.T) {
		// ceo <- mgr <- emp, so ceo reporting to emp closes a loop
		_, err := svc.SetManager(ctx, "ceo", strp("emp"))
		assert.ErrorIs(t, err, domainwf.ErrValidation)

		ceo, err := svc.GetEmployee(ctx, "ceo")
		require.NoError(t, err)
		assert.Nil(t, ceo.ReportsTo)
	})

	t.Run("unknown manager", func(t *testing.T) {
		_, err := svc.SetManager(ctx, "emp", strp("ghost"))
		assert.ErrorIs(t, err, domainwf.ErrNotFound)
	})

	t.Run("relink and clear", func(t *testing.T) {
		emp, err := svc.SetManager(ctx, "emp", strp("ceo"))
		require.NoError(t, err)
		assert.Equal(t, "ceo", emp.ManagerID())

		emp, err = svc.SetManager(ctx, "emp", nil)
		require.NoError(t, err)
		assert.Nil(t, emp.ReportsTo)
	})
}

func TestDirectoryService_SetRole(t *testing.T) {
	svc, _ := newDirectory(t)
	ctx := context.Background()

	emp, err := svc.SetRole(ctx, "emp", entity.RoleHRAdmin)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleHRAdmin, emp.SystemRole)

	_, err = svc.SetRole(ctx, "emp", "BOSS")
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	_, err = svc.SetRole(ctx, "ghost", entity.RoleCFO)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)
}

func TestDirectoryService_Delegation(t *testing.T) {
	svc, _ := newDirectory(t)
	ctx := context.Background()
	until := fixedNow.Add(72 * time.Hour)

	_, err := svc.SetDelegation(ctx, "mgr", "mgr", until)
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	_, err = svc.SetDelegation(ctx, "mgr", "ceo", fixedNow)
	assert.ErrorIs(t, err, domainwf.ErrValidation, "until must be strictly in the future")

	_, err = svc.SetDelegation(ctx, "mgr", "ghost", until)
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	emp, err := svc.SetDelegation(ctx, "mgr", "ceo", until)
	require.NoError(t, err)
	require.NotNil(t, emp.Delegation)
	assert.Equal(t, "Casey", emp.Delegation.DelegateName)
	delegate, ok := emp.ActiveDelegate(fixedNow)
	assert.True(t, ok)
	assert.Equal(t, "ceo", delegate)

	emp, err = svc.ClearDelegation(ctx, "mgr")
	require.NoError(t, err)
	assert.Nil(t, emp.Delegation)
}

func TestDirectoryService_ListEmployees(t *testing.T) {
	svc, _ := newDirectory(t)

	all, err := svc.ListEmployees(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ceo", all[0].ID)
}
