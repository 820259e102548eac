package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/employee-portal/internal/application/dispatcher"
	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	"github.com/garyjia/employee-portal/internal/domain/event"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// Transition outcomes reported to MetricsRecorder
const (
	OutcomeSuccess           = "success"
	OutcomeReplayed          = "replayed"
	OutcomeNotFound          = "not_found"
	OutcomeUnauthorized      = "unauthorized"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeValidation        = "validation"
	OutcomeRouting           = "routing"
	OutcomeConflict          = "conflict"
	OutcomeError             = "error"
)

const actionCreate = "CREATE"

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	employees port.EmployeeRepository
	catalog   port.ServiceCatalog
	requests  port.RequestRepository
	txManager port.TransactionManager
	router    Router
	logger    Logger

	dispatcher dispatcher.Dispatcher
	metrics    MetricsRecorder
	now        func() time.Time
	newID      func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events after commit
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the recorder for transition outcomes
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithClock overrides the time source for history entries
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides request id generation
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = gen
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	employees port.EmployeeRepository,
	catalog port.ServiceCatalog,
	requests port.RequestRepository,
	txManager port.TransactionManager,
	router Router,
	logger Logger,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		employees: employees,
		catalog:   catalog,
		requests:  requests,
		txManager: txManager,
		router:    router,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create stores a new request. A non-draft create routes to the first step and
// fails without writing anything if routing fails.
func (e *engineImpl) Create(ctx context.Context, cmd CreateCommand) (*entity.Request, error) {
	var created *entity.Request

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		requester, err := e.employees.Get(txCtx, cmd.RequesterID)
		if err != nil {
			return fmt.Errorf("load requester: %w", err)
		}
		svc, err := e.catalog.Get(txCtx, cmd.ServiceID)
		if err != nil {
			return fmt.Errorf("load service: %w", err)
		}
		if err := svc.ValidatePayload(cmd.Payload, !cmd.AsDraft); err != nil {
			return err
		}

		now := e.now()
		req := &entity.Request{
			ID:           e.newID(),
			EmployeeID:   requester.ID,
			EmployeeName: requester.Name,
			ServiceID:    svc.ID,
			ServiceTitle: svc.Title,
			Payload:      cmd.Payload.Clone(),
			Steps:        svc.OrderedSteps(),
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if req.Payload == nil {
			req.Payload = entity.Payload{}
		}

		action := entity.ActionCreatedAsDraft
		if cmd.AsDraft {
			req.Status = domainwf.StateDraft
			req.AssignedTo = requester.ID
		} else {
			assignee, err := e.resolveFirst(txCtx, requester.ID, req.Steps)
			if err != nil {
				return err
			}
			req.Status = domainwf.StatePending
			req.AssignedTo = assignee
			action = entity.ActionSubmitted
		}
		req.History = []entity.HistoryEntry{{
			ActorID:   requester.ID,
			ActorName: requester.Name,
			Action:    action,
			Time:      now,
		}}

		if err := e.requests.Create(txCtx, req); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		created = req
		return nil
	})

	e.recordOutcome(actionCreate, err)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Request created",
		"request_id", created.ID,
		"employee_id", created.EmployeeID,
		"service_id", created.ServiceID,
		"status", created.Status.String(),
		"assigned_to", created.AssignedTo,
	)

	e.emit(ctx, event.TypeRequestCreated, created, created.EmployeeID, "")
	if created.Status == domainwf.StatePending {
		e.emit(ctx, event.TypeRequestSubmitted, created, created.EmployeeID, "")
		e.emit(ctx, event.TypeRequestAssigned, created, created.EmployeeID, "")
	}
	return created, nil
}

func (e *engineImpl) Submit(ctx context.Context, requestID, actorID string, opts ...TransitionOption) (*entity.Request, error) {
	return e.applyTransition(ctx, transitionInput{
		trigger:   domainwf.TriggerSubmit,
		requestID: requestID,
		actorID:   actorID,
		options:   collectOptions(opts),
	})
}

func (e *engineImpl) Approve(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error) {
	return e.applyTransition(ctx, transitionInput{
		trigger:   domainwf.TriggerApprove,
		requestID: requestID,
		actorID:   actorID,
		note:      note,
		options:   collectOptions(opts),
	})
}

func (e *engineImpl) Reject(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error) {
	return e.applyTransition(ctx, transitionInput{
		trigger:   domainwf.TriggerReject,
		requestID: requestID,
		actorID:   actorID,
		note:      note,
		options:   collectOptions(opts),
	})
}

func (e *engineImpl) ReturnForEdit(ctx context.Context, requestID, actorID, note string, opts ...TransitionOption) (*entity.Request, error) {
	return e.applyTransition(ctx, transitionInput{
		trigger:   domainwf.TriggerReturn,
		requestID: requestID,
		actorID:   actorID,
		note:      note,
		options:   collectOptions(opts),
	})
}

func (e *engineImpl) UpdatePayload(ctx context.Context, requestID, actorID string, payload entity.Payload) (*entity.Request, error) {
	if payload == nil {
		payload = entity.Payload{}
	}
	return e.applyTransition(ctx, transitionInput{
		trigger:   domainwf.TriggerEdit,
		requestID: requestID,
		actorID:   actorID,
		payload:   payload,
	})
}

func (e *engineImpl) GetRequest(ctx context.Context, requestID string) (*entity.Request, error) {
	return e.requests.Get(ctx, requestID)
}

func (e *engineImpl) ListRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	return e.requests.List(ctx, filter)
}

type transitionInput struct {
	trigger   domainwf.Trigger
	requestID string
	actorID   string
	note      string
	payload   entity.Payload
	options   transitionOptions
}

type transitionResult struct {
	request  *entity.Request
	replayed bool
	// assigned is set when the transition handed the request to a new approver
	assigned bool
}

// applyTransition runs the shared read-validate-route-write closure and
// retries it once on a version conflict. The retry re-reads and re-validates.
func (e *engineImpl) applyTransition(ctx context.Context, in transitionInput) (*entity.Request, error) {
	result, err := e.transitionOnce(ctx, in)
	if errors.Is(err, domainwf.ErrConcurrencyConflict) {
		if e.metrics != nil {
			e.metrics.RecordConflict()
		}
		e.logger.Info("Concurrent update detected, retrying",
			"request_id", in.requestID,
			"action", in.trigger.String(),
			"actor_id", in.actorID,
		)
		result, err = e.transitionOnce(ctx, in)
	}

	if err != nil {
		e.recordOutcome(in.trigger.String(), err)
		e.logger.Error("Transition failed",
			"request_id", in.requestID,
			"action", in.trigger.String(),
			"actor_id", in.actorID,
			"error", err,
		)
		return nil, err
	}

	if result.replayed {
		if e.metrics != nil {
			e.metrics.RecordTransition(in.trigger.String(), OutcomeReplayed)
		}
		e.logger.Info("Transition already applied",
			"request_id", in.requestID,
			"action", in.trigger.String(),
			"idempotency_key", in.options.idempotencyKey,
		)
		return result.request, nil
	}

	e.recordOutcome(in.trigger.String(), nil)
	req := result.request
	e.logger.Info("Request transitioned",
		"request_id", req.ID,
		"action", in.trigger.String(),
		"actor_id", in.actorID,
		"status", req.Status.String(),
		"assigned_to", req.AssignedTo,
		"step_index", req.CurrentStepIndex,
	)

	e.emitTransitionEvents(ctx, in, result)
	return req, nil
}

func (e *engineImpl) transitionOnce(ctx context.Context, in transitionInput) (*transitionResult, error) {
	var result *transitionResult

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.requests.Get(txCtx, in.requestID)
		if err != nil {
			return err
		}

		if prior, ok := req.HistoryByIdempotencyKey(in.options.idempotencyKey); ok {
			if prior.Action != historyAction(in.trigger) || prior.ActorID != in.actorID {
				return fmt.Errorf("%w: idempotency key %q was already used for %q by %s",
					domainwf.ErrValidation, in.options.idempotencyKey, prior.Action, prior.ActorID)
			}
			result = &transitionResult{request: req, replayed: true}
			return nil
		}

		complete := false
		machine := BuildRequestStateMachine(req.Status, func(ctx context.Context) bool { return complete })
		if !machine.CanFire(in.trigger) {
			return fmt.Errorf("%w: cannot %s a request in state %s",
				domainwf.ErrInvalidTransition, strings.ToLower(in.trigger.String()), req.Status)
		}

		if err := authorize(req, in); err != nil {
			return err
		}

		next := req.Clone()
		var entry *entity.HistoryEntry
		assigned := false

		switch in.trigger {
		case domainwf.TriggerEdit:
			svc, err := e.catalog.Get(txCtx, req.ServiceID)
			if err != nil {
				return fmt.Errorf("load service: %w", err)
			}
			if err := svc.ValidatePayload(in.payload, false); err != nil {
				return err
			}
			next.Payload = in.payload.Clone()

		case domainwf.TriggerSubmit:
			svc, err := e.catalog.Get(txCtx, req.ServiceID)
			if err != nil {
				return fmt.Errorf("load service: %w", err)
			}
			if err := svc.ValidatePayload(req.Payload, true); err != nil {
				return err
			}
			steps := svc.OrderedSteps()
			assignee, err := e.resolveFirst(txCtx, req.EmployeeID, steps)
			if err != nil {
				return err
			}
			next.Steps = steps
			next.CurrentStepIndex = 0
			next.AssignedTo = assignee
			assigned = true
			entry = e.historyEntry(txCtx, req, in, historyAction(in.trigger))

		case domainwf.TriggerApprove:
			assignee, done, err := e.router.ResolveNextAssignee(txCtx, req.EmployeeID, req.Steps, req.CurrentStepIndex)
			if err != nil {
				e.recordRoutingFailure(err)
				return err
			}
			complete = done
			if done {
				next.AssignedTo = ""
			} else {
				next.AssignedTo = assignee
				next.CurrentStepIndex++
				assigned = true
			}
			entry = e.historyEntry(txCtx, req, in, historyAction(in.trigger))

		case domainwf.TriggerReject:
			if err := requireNote(in.note); err != nil {
				return err
			}
			next.AssignedTo = ""
			entry = e.historyEntry(txCtx, req, in, historyAction(in.trigger))

		case domainwf.TriggerReturn:
			if err := requireNote(in.note); err != nil {
				return err
			}
			next.AssignedTo = req.EmployeeID
			entry = e.historyEntry(txCtx, req, in, historyAction(in.trigger))
		}

		if err := machine.Fire(txCtx, in.trigger); err != nil {
			return err
		}
		next.Status = machine.State()
		next.UpdatedAt = e.now()

		if err := e.requests.Update(txCtx, next, req.Version, entry); err != nil {
			return err
		}

		result = &transitionResult{request: next, assigned: assigned}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorize checks the actor against the request read inside the transaction
func authorize(req *entity.Request, in transitionInput) error {
	switch in.trigger {
	case domainwf.TriggerSubmit, domainwf.TriggerEdit:
		if in.actorID != req.EmployeeID {
			return fmt.Errorf("%w: only the requester may %s request %s",
				domainwf.ErrUnauthorized, strings.ToLower(in.trigger.String()), req.ID)
		}
	default:
		if in.actorID == "" || in.actorID != req.AssignedTo {
			return fmt.Errorf("%w: request %s is assigned to another employee",
				domainwf.ErrUnauthorized, req.ID)
		}
	}
	return nil
}

// historyAction is the history action a trigger records
func historyAction(trigger domainwf.Trigger) string {
	switch trigger {
	case domainwf.TriggerSubmit:
		return entity.ActionSubmitted
	case domainwf.TriggerApprove:
		return entity.ActionApproved
	case domainwf.TriggerReject:
		return entity.ActionRejected
	case domainwf.TriggerReturn:
		return entity.ActionReturned
	}
	return ""
}

func requireNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return fmt.Errorf("%w: a note is required", domainwf.ErrValidation)
	}
	return nil
}

// resolveFirst routes a fresh submission to step 0
func (e *engineImpl) resolveFirst(ctx context.Context, requesterID string, steps []entity.ApprovalStep) (string, error) {
	assignee, complete, err := e.router.ResolveNextAssignee(ctx, requesterID, steps, -1)
	if err == nil && complete {
		err = domainwf.ErrNoApprovalSteps
	}
	if err != nil {
		e.recordRoutingFailure(err)
		return "", err
	}
	return assignee, nil
}

// historyEntry builds the audit record; its time never precedes the previous entry
func (e *engineImpl) historyEntry(ctx context.Context, req *entity.Request, in transitionInput, action string) *entity.HistoryEntry {
	at := e.now()
	if last := req.LastHistoryTime(); at.Before(last) {
		at = last
	}
	return &entity.HistoryEntry{
		ActorID:        in.actorID,
		ActorName:      e.actorName(ctx, in.actorID),
		Action:         action,
		Note:           strings.TrimSpace(in.note),
		Time:           at,
		IdempotencyKey: in.options.idempotencyKey,
	}
}

func (e *engineImpl) actorName(ctx context.Context, actorID string) string {
	emp, err := e.employees.Get(ctx, actorID)
	if err != nil {
		return actorID
	}
	return emp.Name
}

func (e *engineImpl) emitTransitionEvents(ctx context.Context, in transitionInput, result *transitionResult) {
	req := result.request
	switch in.trigger {
	case domainwf.TriggerSubmit:
		e.emit(ctx, event.TypeRequestSubmitted, req, in.actorID, "")
	case domainwf.TriggerApprove:
		if req.Status == domainwf.StateApproved {
			e.emit(ctx, event.TypeRequestApproved, req, in.actorID, in.note)
		}
	case domainwf.TriggerReject:
		e.emit(ctx, event.TypeRequestRejected, req, in.actorID, in.note)
	case domainwf.TriggerReturn:
		e.emit(ctx, event.TypeRequestReturned, req, in.actorID, in.note)
	}
	if result.assigned {
		e.emit(ctx, event.TypeRequestAssigned, req, in.actorID, "")
	}
}

func (e *engineImpl) emit(ctx context.Context, eventType event.Type, req *entity.Request, actorID, note string) {
	if e.dispatcher == nil {
		return
	}
	payload := map[string]interface{}{
		event.KeyActorID:    actorID,
		event.KeyEmployeeID: req.EmployeeID,
		event.KeyAssignee:   req.AssignedTo,
		event.KeyStatus:     req.Status.String(),
		event.KeyStepIndex:  req.CurrentStepIndex,
		event.KeyService:    req.ServiceTitle,
	}
	if note != "" {
		payload[event.KeyNote] = note
	}
	// Handlers outlive the caller's request context
	e.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(eventType, req.ID, payload))
}

func (e *engineImpl) recordOutcome(action string, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordTransition(action, ClassifyError(err))
}

func (e *engineImpl) recordRoutingFailure(err error) {
	if e.metrics == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, domainwf.ErrNoManagerAssigned):
		reason = "no_manager"
	case errors.Is(err, domainwf.ErrNoRoleHolder):
		reason = "no_role_holder"
	case errors.Is(err, domainwf.ErrNoApprovalSteps):
		reason = "no_steps"
	case !errors.Is(err, domainwf.ErrRouting):
		return
	}
	e.metrics.RecordRoutingFailure(reason)
}

// ClassifyError maps an engine error to a stable outcome label
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domainwf.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return OutcomeInvalidTransition
	case errors.Is(err, domainwf.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, domainwf.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, domainwf.ErrRouting):
		return OutcomeRouting
	case errors.Is(err, domainwf.ErrConcurrencyConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

func collectOptions(opts []TransitionOption) transitionOptions {
	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
