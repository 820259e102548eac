package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/application/service"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

// xlsxContentType is the MIME type of the usage export
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CreateEmployeeBody is the body of POST /api/employees
type CreateEmployeeBody struct {
	ID         string  `json:"id"`
	Name       string  `json:"name" binding:"required"`
	Email      string  `json:"email" binding:"required"`
	Department string  `json:"department"`
	JobTitle   string  `json:"job_title"`
	ReportsTo  *string `json:"reports_to"`
	SystemRole string  `json:"system_role"`
}

// ManagerBody is the body of PUT /api/employees/:id/manager; a null manager clears the link
type ManagerBody struct {
	ManagerID *string `json:"manager_id"`
}

// RoleBody is the body of PUT /api/employees/:id/role
type RoleBody struct {
	Role string `json:"role" binding:"required"`
}

// DelegationBody is the body of PUT /api/employees/:id/delegation
type DelegationBody struct {
	DelegateID string    `json:"delegate_id" binding:"required"`
	Until      time.Time `json:"until" binding:"required"`
}

// SuggestionBody is the body of POST /api/suggestions
type SuggestionBody struct {
	Kind      string         `json:"kind" binding:"required"`
	RequestID string         `json:"request_id"`
	ServiceID string         `json:"service_id"`
	Payload   entity.Payload `json:"payload"`
}

// SuggestionResponse wraps drafted text
type SuggestionResponse struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func errValidation(msg string) error {
	return fmt.Errorf("%w: %s", domainwf.ErrValidation, msg)
}

// requireAdmin fails unless the caller holds HR_ADMIN
func (h *Handlers) requireAdmin(c *gin.Context) error {
	actor, err := h.deps.Directory.GetEmployee(c.Request.Context(), actorID(c))
	if err != nil {
		return fmt.Errorf("%w: unknown actor %s", domainwf.ErrUnauthorized, actorID(c))
	}
	if actor.SystemRole != entity.RoleHRAdmin {
		return fmt.Errorf("%w: %s role required", domainwf.ErrUnauthorized, entity.RoleHRAdmin)
	}
	return nil
}

// requireSelfOrAdmin lets employees act on their own record
func (h *Handlers) requireSelfOrAdmin(c *gin.Context, employeeID string) error {
	if actorID(c) == employeeID {
		return nil
	}
	return h.requireAdmin(c)
}

// ListEmployees handles GET /api/employees
func (h *Handlers) ListEmployees(c *gin.Context) {
	employees, err := h.deps.Directory.ListEmployees(c.Request.Context())
	if err != nil {
		h.fail(c, "list employees", err)
		return
	}
	if employees == nil {
		employees = []*entity.Employee{}
	}
	ok(c, http.StatusOK, employees)
}

// GetEmployee handles GET /api/employees/:id
func (h *Handlers) GetEmployee(c *gin.Context) {
	emp, err := h.deps.Directory.GetEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get employee", err)
		return
	}
	ok(c, http.StatusOK, emp)
}

// CreateEmployee handles POST /api/employees (HR_ADMIN only)
func (h *Handlers) CreateEmployee(c *gin.Context) {
	if err := h.requireAdmin(c); err != nil {
		h.fail(c, "create employee", err)
		return
	}

	var body CreateEmployeeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	emp, err := h.deps.Directory.CreateEmployee(c.Request.Context(), service.CreateEmployeeCommand{
		ID:         body.ID,
		Name:       body.Name,
		Email:      body.Email,
		Department: body.Department,
		JobTitle:   body.JobTitle,
		ReportsTo:  body.ReportsTo,
		SystemRole: entity.SystemRole(strings.ToUpper(body.SystemRole)),
	})
	if err != nil {
		h.fail(c, "create employee", err)
		return
	}
	ok(c, http.StatusCreated, emp)
}

// SetManager handles PUT /api/employees/:id/manager (HR_ADMIN only)
func (h *Handlers) SetManager(c *gin.Context) {
	if err := h.requireAdmin(c); err != nil {
		h.fail(c, "set manager", err)
		return
	}

	var body ManagerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	emp, err := h.deps.Directory.SetManager(c.Request.Context(), c.Param("id"), body.ManagerID)
	if err != nil {
		h.fail(c, "set manager", err)
		return
	}
	ok(c, http.StatusOK, emp)
}

// SetRole handles PUT /api/employees/:id/role (HR_ADMIN only)
func (h *Handlers) SetRole(c *gin.Context) {
	if err := h.requireAdmin(c); err != nil {
		h.fail(c, "set role", err)
		return
	}

	var body RoleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	emp, err := h.deps.Directory.SetRole(c.Request.Context(), c.Param("id"), entity.SystemRole(strings.ToUpper(body.Role)))
	if err != nil {
		h.fail(c, "set role", err)
		return
	}
	ok(c, http.StatusOK, emp)
}

// SetDelegation handles PUT /api/employees/:id/delegation
func (h *Handlers) SetDelegation(c *gin.Context) {
	employeeID := c.Param("id")
	if err := h.requireSelfOrAdmin(c, employeeID); err != nil {
		h.fail(c, "set delegation", err)
		return
	}

	var body DelegationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	emp, err := h.deps.Directory.SetDelegation(c.Request.Context(), employeeID, body.DelegateID, body.Until)
	if err != nil {
		h.fail(c, "set delegation", err)
		return
	}
	ok(c, http.StatusOK, emp)
}

// ClearDelegation handles DELETE /api/employees/:id/delegation
func (h *Handlers) ClearDelegation(c *gin.Context) {
	employeeID := c.Param("id")
	if err := h.requireSelfOrAdmin(c, employeeID); err != nil {
		h.fail(c, "clear delegation", err)
		return
	}

	emp, err := h.deps.Directory.ClearDelegation(c.Request.Context(), employeeID)
	if err != nil {
		h.fail(c, "clear delegation", err)
		return
	}
	ok(c, http.StatusOK, emp)
}

// GetUsage handles GET /api/usage/:employeeId?year=
func (h *Handlers) GetUsage(c *gin.Context) {
	employeeID := c.Param("employeeId")
	if err := h.requireSelfOrAdmin(c, employeeID); err != nil {
		h.fail(c, "get usage", err)
		return
	}

	year, valid := h.parseYear(c)
	if !valid {
		return
	}

	summary, err := h.deps.Usage.Summarize(c.Request.Context(), employeeID, year)
	if err != nil {
		h.fail(c, "get usage", err)
		return
	}
	ok(c, http.StatusOK, summary)
}

// ExportUsage handles GET /api/reports/usage.xlsx?year= (HR_ADMIN only)
func (h *Handlers) ExportUsage(c *gin.Context) {
	if err := h.requireAdmin(c); err != nil {
		h.fail(c, "export usage", err)
		return
	}

	year, valid := h.parseYear(c)
	if !valid {
		return
	}

	summaries, err := h.deps.Usage.SummarizeAll(c.Request.Context(), year)
	if err != nil {
		h.fail(c, "export usage", err)
		return
	}

	var buf bytes.Buffer
	if err := h.deps.Exporter.Write(&buf, year, summaries); err != nil {
		h.fail(c, "export usage", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="usage-%d.xlsx"`, year))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handlers) parseYear(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return h.now().Year(), true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		badRequest(c, "year must be a four digit number")
		return 0, false
	}
	return year, true
}

// Suggest handles POST /api/suggestions
func (h *Handlers) Suggest(c *gin.Context) {
	var body SuggestionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	kind := port.SuggestionKind(strings.ToLower(body.Kind))
	text, err := h.deps.Suggestions.Suggest(c.Request.Context(), service.SuggestionInput{
		Kind:      kind,
		RequestID: body.RequestID,
		ServiceID: body.ServiceID,
		Payload:   body.Payload,
	})
	if err != nil {
		h.fail(c, "suggest", err)
		return
	}
	ok(c, http.StatusOK, SuggestionResponse{Kind: string(kind), Text: text})
}
