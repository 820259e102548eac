package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeLogger struct{}

func (fakeLogger) Info(string, ...interface{})  {}
func (fakeLogger) Error(string, ...interface{}) {}

type sentMessage struct {
	email   string
	content string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (f *fakeSender) SendText(_ context.Context, email, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{email: email, content: content})
	return nil
}

type fakeSuggester struct {
	suggestFunc func(ctx context.Context, kind port.SuggestionKind, context map[string]string) (string, error)
}

func (f *fakeSuggester) Suggest(ctx context.Context, kind port.SuggestionKind, c map[string]string) (string, error) {
	if f.suggestFunc != nil {
		return f.suggestFunc(ctx, kind, c)
	}
	return "suggested", nil
}

func addEmployee(t *testing.T, repo port.EmployeeRepository, id, name string, role entity.SystemRole, manager string) {
	t.Helper()
	emp := &entity.Employee{ID: id, Name: name, Email: id + "@corp.example", SystemRole: role, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	if manager != "" {
		emp.ReportsTo = &manager
	}
	require.NoError(t, repo.Create(context.Background(), emp))
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	addEmployee(t, store.Employees(), "ceo", "Casey", entity.RoleCEO, "")
	addEmployee(t, store.Employees(), "mgr", "Morgan", entity.RoleManager, "ceo")
	addEmployee(t, store.Employees(), "emp", "Emery", entity.RoleEmployee, "mgr")
	return store
}
