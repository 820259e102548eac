package container

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/catalog"
	"github.com/garyjia/employee-portal/internal/application/dispatcher"
	"github.com/garyjia/employee-portal/internal/application/port"
	"github.com/garyjia/employee-portal/internal/application/routing"
	"github.com/garyjia/employee-portal/internal/application/service"
	"github.com/garyjia/employee-portal/internal/application/workflow"
	infraLark "github.com/garyjia/employee-portal/internal/infrastructure/external/lark"
	"github.com/garyjia/employee-portal/internal/infrastructure/external/openai"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/memory"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/repository"
	"github.com/garyjia/employee-portal/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/employee-portal/internal/infrastructure/worker"
	"github.com/garyjia/employee-portal/internal/observability"
	"github.com/garyjia/employee-portal/pkg/database"
)

// DatabaseBundle holds database-related components. SqlDB is nil for the
// memory driver.
type DatabaseBundle struct {
	SqlDB     *sql.DB
	TxManager port.TransactionManager
	Memory    *memory.Store
}

// MetricsBundle holds the Prometheus registry and portal instruments.
type MetricsBundle struct {
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
}

// ProvideDatabase opens the configured store. For sqlite it also runs the
// embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == DriverMemory {
		logger.Warn("Using in-memory store; data is lost on restart")
		return &DatabaseBundle{
			TxManager: memory.TxManager{},
			Memory:    memory.NewStore(),
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:     db.DB,
		TxManager: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates the repositories over the opened store.
func ProvideRepositories(db *DatabaseBundle, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database bundle is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if db.Memory != nil {
		return &RepositoryBundle{
			Employee: db.Memory.Employees(),
			Service:  db.Memory.Services(),
			Request:  db.Memory.Requests(),
		}, nil
	}

	if db.SqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RepositoryBundle{
		Employee: repository.NewEmployeeRepository(db.SqlDB, logger),
		Service:  repository.NewServiceRepository(db.SqlDB, logger),
		Request:  repository.NewRequestRepository(db.SqlDB, logger),
	}, nil
}

// ProvideMessenger returns the Lark IM sender, or a logging sender when Lark
// is disabled.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if !cfg.Enabled {
		logger.Info("Lark disabled; notifications will only be logged")
		return infraLark.NewLogSender(logger), nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideSuggester returns the OpenAI text suggester. It returns a nil
// interface when suggestions are disabled.
func ProvideSuggester(cfg *OpenAIConfig, logger *zap.Logger) (port.TextSuggester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}
	if !cfg.Enabled {
		logger.Info("OpenAI disabled; text suggestions unavailable")
		return nil, nil
	}

	var prompts *openai.PromptConfig
	if cfg.PromptsPath != "" {
		loaded, err := openai.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	return openai.NewSuggester(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, prompts, logger), nil
}

// ProvideMetrics creates a registry with runtime collectors and the portal
// instruments.
func ProvideMetrics() *MetricsBundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsBundle{
		Registry: reg,
		Metrics:  observability.InitMetrics(reg),
	}
}

// ProvideCatalog creates the service catalog cache. Reads made inside a
// SQLite transaction bypass the shared cache fill.
func ProvideCatalog(repo port.ServiceRepository, cfg *CatalogConfig) *catalog.Catalog {
	return catalog.New(repo, cfg.CacheTTL, catalog.WithTxDetector(sqlite.InTransaction))
}

// ProvideDispatcher creates the in-process event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger}),
	), nil
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Catalog    *catalog.Catalog
	Dispatcher dispatcher.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine with its router.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow deps are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	opts := []workflow.EngineOption{}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(deps.Metrics))
	}

	return workflow.NewEngine(
		deps.Repos.Employee,
		deps.Catalog,
		deps.Repos.Request,
		deps.TxManager,
		routing.NewRouter(deps.Repos.Employee),
		&zapLoggerAdapter{logger: deps.Logger},
		opts...,
	), nil
}

// ServiceDeps holds dependencies for creating application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Catalog    *catalog.Catalog
	Messenger  port.MessageSender
	Suggester  port.TextSuggester
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// notification handlers to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("service deps are required")
	}
	if deps.Messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}

	notification := service.NewNotificationService(deps.Repos.Employee, deps.Messenger, log)
	if deps.Dispatcher != nil {
		notification.Register(deps.Dispatcher)
	}

	return &ServiceBundle{
		Directory:    service.NewDirectoryService(deps.Repos.Employee, deps.TxManager, log),
		Notification: notification,
		Usage:        service.NewUsageService(deps.Repos.Employee, deps.Repos.Request, log),
		Suggestion:   service.NewSuggestionService(deps.Suggester, deps.Catalog, deps.Repos.Request, log),
	}, nil
}

// WorkerDeps holds dependencies for creating background workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideWorkers creates the worker manager with the delegation sweeper.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("worker deps are required")
	}

	manager := worker.NewWorkerManager(deps.Logger)
	manager.Register(worker.NewDelegationSweeper(
		worker.DelegationSweeperConfig{Interval: deps.WorkerCfg.DelegationSweepInterval},
		deps.Repos.Employee,
		deps.Logger,
	))
	return manager, nil
}
