// Package http is the JSON facade over the workflow engine and the portal
// services. Authentication happens upstream; the acting employee arrives in
// the X-Employee-ID header.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/employee-portal/internal/application/service"
	"github.com/garyjia/employee-portal/internal/application/workflow"
	"github.com/garyjia/employee-portal/internal/domain/entity"
	"github.com/garyjia/employee-portal/internal/observability"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServiceCatalog is the catalog surface exposed over HTTP
type ServiceCatalog interface {
	Get(ctx context.Context, id string) (*entity.ServiceDefinition, error)
	List(ctx context.Context) ([]*entity.ServiceDefinition, error)
	Upsert(ctx context.Context, svc *entity.ServiceDefinition) error
}

// UsageExporter renders usage summaries as a spreadsheet
type UsageExporter interface {
	Write(w io.Writer, year int, summaries []*service.UsageSummary) error
}

// Dependencies are the application components the handlers call
type Dependencies struct {
	Engine      workflow.WorkflowEngine
	Catalog     ServiceCatalog
	Directory   service.DirectoryService
	Usage       service.UsageService
	Suggestions service.SuggestionService
	Exporter    UsageExporter

	// Optional
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	HealthCheck    func(ctx context.Context) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server over the given dependencies
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config: config,
		router: gin.New(),
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.GinMiddleware())
	}
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"actor", c.GetHeader(HeaderEmployeeID),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", h.HealthCheck)
	if s.deps.MetricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.MetricsHandler))
	}

	api := s.router.Group("/api")
	api.Use(requireActor())
	{
		api.GET("/services", h.ListServices)
		api.GET("/services/:id", h.GetService)
		api.PUT("/services/:id", h.UpsertService)

		api.POST("/requests", h.CreateRequest)
		api.GET("/requests", h.ListRequests)
		api.GET("/requests/:id", h.GetRequest)
		api.PUT("/requests/:id/payload", h.UpdatePayload)
		api.POST("/requests/:id/submit", h.Submit)
		api.POST("/requests/:id/approve", h.Approve)
		api.POST("/requests/:id/reject", h.Reject)
		api.POST("/requests/:id/return", h.ReturnForEdit)

		api.GET("/employees", h.ListEmployees)
		api.POST("/employees", h.CreateEmployee)
		api.GET("/employees/:id", h.GetEmployee)
		api.PUT("/employees/:id/manager", h.SetManager)
		api.PUT("/employees/:id/role", h.SetRole)
		api.PUT("/employees/:id/delegation", h.SetDelegation)
		api.DELETE("/employees/:id/delegation", h.ClearDelegation)

		api.GET("/usage/:employeeId", h.GetUsage)
		api.GET("/reports/usage.xlsx", h.ExportUsage)

		api.POST("/suggestions", h.Suggest)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
