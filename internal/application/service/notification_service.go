package service

import (
	"context"
	"fmt"

	"github.com/garyjia/employee-portal/internal/application/dispatcher"
	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/event"
)

// NotificationService turns workflow events into direct messages
type NotificationService interface {
	// Register subscribes the service to the events it reacts to
	Register(d dispatcher.Dispatcher)

	NotifyAssignee(ctx context.Context, evt *event.Event) error
	NotifyRequester(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	employees port.EmployeeRepository
	sender    port.MessageSender
	logger    Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	employees port.EmployeeRepository,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		employees: employees,
		sender:    sender,
		logger:    logger,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeRequestAssigned, "notify-assignee", s.NotifyAssignee)
	for _, t := range []event.Type{event.TypeRequestApproved, event.TypeRequestRejected, event.TypeRequestReturned} {
		d.SubscribeNamed(t, "notify-requester", s.NotifyRequester)
	}
}

// NotifyAssignee tells the new assignee that a request awaits their decision
func (s *notificationServiceImpl) NotifyAssignee(ctx context.Context, evt *event.Event) error {
	assignee := evt.GetPayloadString(event.KeyAssignee)
	if assignee == "" {
		return nil
	}

	message := fmt.Sprintf("%s from %s is waiting for your approval (request %s).",
		serviceLabel(evt), s.displayName(ctx, evt.GetPayloadString(event.KeyEmployeeID)), evt.RequestID)
	return s.send(ctx, evt, assignee, message)
}

// NotifyRequester reports a decision or a return-for-edit to the request owner
func (s *notificationServiceImpl) NotifyRequester(ctx context.Context, evt *event.Event) error {
	owner := evt.GetPayloadString(event.KeyEmployeeID)
	if owner == "" {
		return nil
	}

	var message string
	switch evt.Type {
	case event.TypeRequestApproved:
		message = fmt.Sprintf("Your %s (request %s) was approved.", serviceLabel(evt), evt.RequestID)
	case event.TypeRequestRejected:
		message = fmt.Sprintf("Your %s (request %s) was rejected.", serviceLabel(evt), evt.RequestID)
	case event.TypeRequestReturned:
		message = fmt.Sprintf("Your %s (request %s) was returned for edits.", serviceLabel(evt), evt.RequestID)
	default:
		return nil
	}
	if note := evt.GetPayloadString(event.KeyNote); note != "" {
		message += "\nNote: " + note
	}
	return s.send(ctx, evt, owner, message)
}

func (s *notificationServiceImpl) send(ctx context.Context, evt *event.Event, employeeID, message string) error {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		s.logger.Error("Failed to resolve notification recipient", "error", err, "employee_id", employeeID, "request_id", evt.RequestID)
		return fmt.Errorf("get recipient: %w", err)
	}

	if err := s.sender.SendText(ctx, emp.Email, message); err != nil {
		s.logger.Error("Failed to send notification", "error", err, "employee_id", employeeID, "request_id", evt.RequestID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Notification sent",
		"event_type", evt.Type,
		"request_id", evt.RequestID,
		"employee_id", employeeID,
	)
	return nil
}

func (s *notificationServiceImpl) displayName(ctx context.Context, employeeID string) string {
	if emp, err := s.employees.Get(ctx, employeeID); err == nil {
		return emp.Name
	}
	return employeeID
}

func serviceLabel(evt *event.Event) string {
	if title := evt.GetPayloadString(event.KeyService); title != "" {
		return title
	}
	return "request"
}
