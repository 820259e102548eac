// Package routing resolves who must act next on a request.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// Directory is the employee lookup the router needs
type Directory interface {
	Get(ctx context.Context, id string) (*entity.Employee, error)
	FindByRole(ctx context.Context, role entity.SystemRole) ([]*entity.Employee, error)
}

// Router maps an approval step to a concrete employee.
// It only reads; callers pass a transactional context to read consistently.
type Router struct {
	directory Directory
	now       func() time.Time
}

// Option configures the router
type Option func(*Router)

// WithClock overrides the time source used for delegation expiry
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// NewRouter creates a router over the directory
func NewRouter(directory Directory, opts ...Option) *Router {
	r := &Router{
		directory: directory,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveNextAssignee returns the assignee of steps[currentStepIndex+1].
// complete is true when no step remains. Pass -1 to resolve the first step.
func (r *Router) ResolveNextAssignee(ctx context.Context, requesterID string, steps []entity.ApprovalStep, currentStepIndex int) (string, bool, error) {
	if currentStepIndex < -1 {
		return "", false, fmt.Errorf("%w: step index %d out of range", domainwf.ErrRouting, currentStepIndex)
	}

	next := currentStepIndex + 1
	if next >= len(steps) {
		return "", true, nil
	}

	candidate, err := r.resolveStep(ctx, requesterID, steps[next])
	if err != nil {
		return "", false, err
	}

	assignee, err := r.applyDelegation(ctx, candidate)
	if err != nil {
		return "", false, err
	}
	return assignee, false, nil
}

func (r *Router) resolveStep(ctx context.Context, requesterID string, step entity.ApprovalStep) (string, error) {
	switch step.Kind {
	case entity.StepReportsTo:
		requester, err := r.directory.Get(ctx, requesterID)
		if err != nil {
			return "", fmt.Errorf("load requester %s: %w", requesterID, err)
		}
		if requester.ReportsTo == nil || *requester.ReportsTo == "" {
			return "", fmt.Errorf("%w: employee %s", domainwf.ErrNoManagerAssigned, requesterID)
		}
		return *requester.ReportsTo, nil

	case entity.StepSystemRole:
		if !step.RoleValue.IsValid() {
			return "", fmt.Errorf("%w: step %d has invalid role %q", domainwf.ErrRouting, step.Order, step.RoleValue)
		}
		holders, err := r.directory.FindByRole(ctx, step.RoleValue)
		if err != nil {
			return "", fmt.Errorf("find role %s: %w", step.RoleValue, err)
		}
		if len(holders) == 0 {
			return "", fmt.Errorf("%w: role %s", domainwf.ErrNoRoleHolder, step.RoleValue)
		}
		// Directory returns holders ordered by id, so the first one is stable
		return holders[0].ID, nil

	default:
		return "", fmt.Errorf("%w: step %d has unknown kind %q", domainwf.ErrRouting, step.Order, step.Kind)
	}
}

// applyDelegation follows exactly one delegation hop
func (r *Router) applyDelegation(ctx context.Context, candidateID string) (string, error) {
	candidate, err := r.directory.Get(ctx, candidateID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return "", fmt.Errorf("%w: assignee %s is not in the directory", domainwf.ErrRouting, candidateID)
		}
		return "", fmt.Errorf("load assignee %s: %w", candidateID, err)
	}
	if delegate, ok := candidate.ActiveDelegate(r.now()); ok {
		return delegate, nil
	}
	return candidate.ID, nil
}
