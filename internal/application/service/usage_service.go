package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// DaysField is the payload field summed over approved requests
const DaysField = "days"

// ServiceUsage counts one employee's requests for one service
type ServiceUsage struct {
	ServiceID    string                 `json:"service_id"`
	ServiceTitle string                 `json:"service_title"`
	Counts       map[domainwf.State]int `json:"counts"`
	ApprovedDays float64                `json:"approved_days"`
}

// UsageSummary is the yearly usage of one employee
type UsageSummary struct {
	EmployeeID   string         `json:"employee_id"`
	EmployeeName string         `json:"employee_name"`
	Year         int            `json:"year"`
	Services     []ServiceUsage `json:"services"`
	Total        int            `json:"total"`
	ApprovedDays float64        `json:"approved_days"`
}

// UsageService is a read-only aggregation over stored requests
type UsageService interface {
	Summarize(ctx context.Context, employeeID string, year int) (*UsageSummary, error)
	SummarizeAll(ctx context.Context, year int) ([]*UsageSummary, error)
}

type usageServiceImpl struct {
	employees port.EmployeeRepository
	requests  port.RequestRepository
	logger    Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(employees port.EmployeeRepository, requests port.RequestRepository, logger Logger) UsageService {
	return &usageServiceImpl{
		employees: employees,
		requests:  requests,
		logger:    logger,
	}
}

// Summarize aggregates the requests an employee created in year
func (s *usageServiceImpl) Summarize(ctx context.Context, employeeID string, year int) (*UsageSummary, error) {
	emp, err := s.employees.Get(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, emp, year)
}

// SummarizeAll returns one summary per directory entry, ordered by employee id
func (s *usageServiceImpl) SummarizeAll(ctx context.Context, year int) ([]*UsageSummary, error) {
	employees, err := s.employees.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list employees for usage", "error", err)
		return nil, fmt.Errorf("list employees: %w", err)
	}

	summaries := make([]*UsageSummary, 0, len(employees))
	for _, emp := range employees {
		summary, err := s.summarize(ctx, emp, year)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *usageServiceImpl) summarize(ctx context.Context, emp *entity.Employee, year int) (*UsageSummary, error) {
	requests, err := s.requests.List(ctx, entity.RequestFilter{EmployeeID: emp.ID})
	if err != nil {
		s.logger.Error("Failed to list requests for usage", "error", err, "employee_id", emp.ID)
		return nil, fmt.Errorf("list requests: %w", err)
	}

	summary := &UsageSummary{EmployeeID: emp.ID, EmployeeName: emp.Name, Year: year}
	byService := map[string]*ServiceUsage{}
	for _, req := range requests {
		if req.CreatedAt.Year() != year {
			continue
		}
		usage, ok := byService[req.ServiceID]
		if !ok {
			usage = &ServiceUsage{
				ServiceID:    req.ServiceID,
				ServiceTitle: req.ServiceTitle,
				Counts:       map[domainwf.State]int{},
			}
			byService[req.ServiceID] = usage
		}
		usage.Counts[req.Status]++
		summary.Total++

		if req.Status == domainwf.StateApproved {
			if days, ok := req.Payload.Number(DaysField); ok {
				usage.ApprovedDays += days
				summary.ApprovedDays += days
			}
		}
	}

	summary.Services = make([]ServiceUsage, 0, len(byService))
	for _, usage := range byService {
		summary.Services = append(summary.Services, *usage)
	}
	sort.Slice(summary.Services, func(i, j int) bool {
		return summary.Services[i].ServiceID < summary.Services[j].ServiceID
	})
	return summary, nil
}
