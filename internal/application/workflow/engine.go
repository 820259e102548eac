package workflow

import (
	"context"

	"github.com/garyjia/employee-portal/internal/domain/entity"
)

// CreateCommand carries the input of a new request
type CreateCommand struct {
	RequesterID string
	ServiceID   string
	Payload     entity.Payload
	AsDraft     bool
}

// WorkflowEngine is the only write path for request lifecycle transitions.
// Every method reads, validates, routes and writes inside one transaction.
type WorkflowEngine interface {
	// Create stores a new request as DRAFT, or submits it straight to PENDING
	Create(ctx context.Context, cmd CreateCommand) (*entity.Request, error)

	// Submit moves a DRAFT or RETURNED request into the approval chain from step 0
	Submit(ctx context.Context, requestID, actorID string, opts ...TransitionOption) (*entity.Request, error)

	// Approve advances to the next step, or finishes the chain as APPROVED
	Approve(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error)

	// Reject ends the request as REJECTED; note is mandatory
	Reject(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error)

	// ReturnForEdit hands the request back to its owner; note is mandatory
	ReturnForEdit(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error)

	// UpdatePayload replaces the payload of a DRAFT or RETURNED request
	UpdatePayload(ctx context.Context, requestID, actorID string, payload entity.Payload) (*entity.Request, error)

	GetRequest(ctx context.Context, requestID string) (*entity.Request, error)
	ListRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
}

// TransitionOption tunes a single transition call
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey makes a retried call return the already-applied result
// instead of transitioning twice
func WithIdempotencyKey(key string) TransitionOption {
	return func(o *transitionOptions) {
		o.idempotencyKey = key
	}
}

// Router resolves the assignee of the step after currentStepIndex
type Router interface {
	ResolveNextAssignee(ctx context.Context, requesterID string, steps []entity.ApprovalStep, currentStepIndex int) (string, bool, error)
}

// MetricsRecorder receives engine outcomes
type MetricsRecorder interface {
	RecordTransition(action, outcome string)
	RecordConflict()
	RecordRoutingFailure(reason string)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
