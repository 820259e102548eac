package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/employee-portal/internal/application/service"
	"github.com/garyjia/employee-portal/internal/application/workflow"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	domainwf "github.com/garyjia/employee-portal/internal/domain/workflow"
)

const (
	// HeaderEmployeeID carries the authenticated employee id
	HeaderEmployeeID = "X-Employee-ID"
	// HeaderIdempotencyKey deduplicates retried transitions
	HeaderIdempotencyKey = "Idempotency-Key"

	actorKey = "actor_id"

	defaultListLimit = 50
	maxListLimit     = 500
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
	now    func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateRequestBody is the body of POST /api/requests
type CreateRequestBody struct {
	ServiceID string         `json:"service_id" binding:"required"`
	Payload   entity.Payload `json:"payload"`
	AsDraft   bool           `json:"as_draft"`
}

// PayloadBody is the body of PUT /api/requests/:id/payload
type PayloadBody struct {
	Payload entity.Payload `json:"payload" binding:"required"`
}

// NoteBody is the optional body of approve, reject and return
type NoteBody struct {
	Note string `json:"note"`
}

func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderEmployeeID))
		if actor == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + HeaderEmployeeID + " header",
			})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorKey)
}

func transitionOptions(c *gin.Context) []workflow.TransitionOption {
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" {
		return nil
	}
	return []workflow.TransitionOption{workflow.WithIdempotencyKey(key)}
}

// statusFor maps application errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrValidation),
		errors.Is(err, domainwf.ErrRouting):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSuggestionsDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "op", op, "actor", actorID(c), "error", err)
		msg = "internal error"
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if h.deps.HealthCheck != nil {
		if err := h.deps.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: h.now().Format(time.RFC3339),
		Version:   Version,
	})
}

// ListServices handles GET /api/services
func (h *Handlers) ListServices(c *gin.Context) {
	services, err := h.deps.Catalog.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list services", err)
		return
	}
	if services == nil {
		services = []*entity.ServiceDefinition{}
	}
	ok(c, http.StatusOK, services)
}

// GetService handles GET /api/services/:id
func (h *Handlers) GetService(c *gin.Context) {
	svc, err := h.deps.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get service", err)
		return
	}
	ok(c, http.StatusOK, svc)
}

// UpsertService handles PUT /api/services/:id (HR_ADMIN only)
func (h *Handlers) UpsertService(c *gin.Context) {
	if err := h.requireAdmin(c); err != nil {
		h.fail(c, "upsert service", err)
		return
	}

	var svc entity.ServiceDefinition
	if err := c.ShouldBindJSON(&svc); err != nil {
		badRequest(c, "invalid service definition: "+err.Error())
		return
	}
	svc.ID = c.Param("id")
	if strings.TrimSpace(svc.Title) == "" {
		h.fail(c, "upsert service", errValidation("title is required"))
		return
	}
	if len(svc.Steps) == 0 {
		h.fail(c, "upsert service", domainwf.ErrNoApprovalSteps)
		return
	}
	svc.UpdatedAt = h.now().UTC()

	if err := h.deps.Catalog.Upsert(c.Request.Context(), &svc); err != nil {
		h.fail(c, "upsert service", err)
		return
	}
	h.logger.Info("Service upserted", "service_id", svc.ID, "actor", actorID(c))
	ok(c, http.StatusOK, &svc)
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := h.deps.Engine.Create(c.Request.Context(), workflow.CreateCommand{
		RequesterID: actorID(c),
		ServiceID:   body.ServiceID,
		Payload:     body.Payload,
		AsDraft:     body.AsDraft,
	})
	if err != nil {
		h.fail(c, "create request", err)
		return
	}
	ok(c, http.StatusCreated, req)
}

// ListRequests handles GET /api/requests?assignee=&employee=&service=&status=&limit=
func (h *Handlers) ListRequests(c *gin.Context) {
	filter := entity.RequestFilter{
		AssigneeID: c.Query("assignee"),
		EmployeeID: c.Query("employee"),
		ServiceID:  c.Query("service"),
		Limit:      defaultListLimit,
	}

	if status := c.Query("status"); status != "" {
		state := domainwf.State(strings.ToUpper(status))
		if !state.IsValid() {
			badRequest(c, "unknown status: "+status)
			return
		}
		filter.Status = state
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	// "me" is shorthand for the caller
	if filter.AssigneeID == "me" {
		filter.AssigneeID = actorID(c)
	}
	if filter.EmployeeID == "me" {
		filter.EmployeeID = actorID(c)
	}

	requests, err := h.deps.Engine.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list requests", err)
		return
	}
	if requests == nil {
		requests = []*entity.Request{}
	}
	ok(c, http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.deps.Engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get request", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdatePayload handles PUT /api/requests/:id/payload
func (h *Handlers) UpdatePayload(c *gin.Context) {
	var body PayloadBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := h.deps.Engine.UpdatePayload(c.Request.Context(), c.Param("id"), actorID(c), body.Payload)
	if err != nil {
		h.fail(c, "update payload", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// Submit handles POST /api/requests/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	req, err := h.deps.Engine.Submit(c.Request.Context(), c.Param("id"), actorID(c), transitionOptions(c)...)
	if err != nil {
		h.fail(c, "submit", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// Approve handles POST /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	note, okBody := bindNote(c)
	if !okBody {
		return
	}
	req, err := h.deps.Engine.Approve(c.Request.Context(), c.Param("id"), actorID(c), note, transitionOptions(c)...)
	if err != nil {
		h.fail(c, "approve", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// Reject handles POST /api/requests/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	note, okBody := bindNote(c)
	if !okBody {
		return
	}
	req, err := h.deps.Engine.Reject(c.Request.Context(), c.Param("id"), actorID(c), note, transitionOptions(c)...)
	if err != nil {
		h.fail(c, "reject", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// ReturnForEdit handles POST /api/requests/:id/return
func (h *Handlers) ReturnForEdit(c *gin.Context) {
	note, okBody := bindNote(c)
	if !okBody {
		return
	}
	req, err := h.deps.Engine.ReturnForEdit(c.Request.Context(), c.Param("id"), actorID(c), note, transitionOptions(c)...)
	if err != nil {
		h.fail(c, "return for edit", err)
		return
	}
	ok(c, http.StatusOK, req)
}

// bindNote reads an optional {"note": "..."} body; an empty body is allowed
func bindNote(c *gin.Context) (string, bool) {
	if c.Request.ContentLength == 0 {
		return "", true
	}
	var body NoteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return "", false
	}
	return body.Note, true
}
