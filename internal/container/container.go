package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/internal/infrastructure/worker"
	httpserver "github.com/garyjia/expense-audit/internal/interfaces/http"
	"github.com/garyjia/expense-audit/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	usage     service.UsageService
	oracle    *OracleBundle
	messenger port.MessageSender

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	documents *DocumentBundle
	services  *ServiceBundle

	// Workers
	workers        *worker.WorkerManager
	documentWorker *worker.DocumentWorker

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Batch        port.BatchRepository
	BatchItem    port.BatchItemRepository
	Usage        port.UsageRepository
	ModelHistory port.ModelHistoryRepository
}

// ServiceBundle groups all application services. Notification is nil when
// Lark notifications are disabled.
type ServiceBundle struct {
	Batch        service.BatchService
	Processing   service.ProcessingService
	Model        service.ModelService
	Usage        service.UsageService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Storage
// 3. External clients (oracle, Lark)
// 4. Document pipeline and application services
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize storage
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.logger.Info("Storage initialized", zap.String("driver", c.config.Storage.Driver))

	// Step 3: Initialize external clients
	if err := c.initExternalClients(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized",
		zap.Strings("providers", c.oracle.Providers.Keys()),
		zap.Bool("notifications", c.messenger != nil))

	// Step 4: Initialize document pipeline and application services
	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	// Step 5: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 5)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Steps 2-4: services, clients and storage hold no resources

	// Step 5: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	// Check database
	if c.db != nil {
		if err := c.db.Ping(); err != nil {
			set("database", ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("database", ComponentHealth{Healthy: true})
		}
	} else {
		set("database", ComponentHealth{Message: "not initialized"})
	}

	// Check workers; a disabled worker is healthy
	switch {
	case c.workers == nil:
		set("workers", ComponentHealth{Message: "not initialized"})
	case !c.config.Worker.Enabled:
		set("workers", ComponentHealth{Healthy: true, Message: "disabled"})
	default:
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.WorkerCount()),
		})
	}

	if c.documentWorker != nil && c.config.Worker.Enabled {
		stats := c.documentWorker.Stats()
		set("document_worker", ComponentHealth{
			Healthy: stats.Running,
			Message: fmt.Sprintf("processed: %d, failed: %d", stats.Processed, stats.Failed),
		})
	}

	// Check repositories
	if c.repositories != nil {
		set("repositories", ComponentHealth{Healthy: true})
	} else {
		set("repositories", ComponentHealth{Message: "not initialized"})
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db.DB, c.logger)
	if err != nil {
		_ = c.db.Close()
		return err
	}

	c.repositories = repos
	return nil
}

// initStorage initializes the document store using providers.
func (c *Container) initStorage() error {
	fileStorage, err := ProvideStorage(c.ctx, &c.config.Storage, c.logger)
	if err != nil {
		return err
	}

	c.fileStorage = fileStorage
	return nil
}

// initExternalClients initializes the oracle and the Lark messenger using
// providers. Token usage flows into the usage repository.
func (c *Container) initExternalClients() error {
	c.usage = service.NewUsageService(c.repositories.Usage, &zapLoggerAdapter{logger: c.logger})

	oracle, err := ProvideOracle(&c.config.Oracle, c.usage, c.logger)
	if err != nil {
		return err
	}
	c.oracle = oracle

	c.messenger = ProvideMessenger(&c.config.Lark, c.logger)
	return nil
}

// initServices initializes the document pipeline and all application services
// using providers.
func (c *Container) initServices() error {
	documents, err := ProvideDocuments(&c.config.Render, &c.config.Rules, c.logger)
	if err != nil {
		return err
	}
	c.documents = documents

	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.txManager,
		Storage:   c.fileStorage,
		Usage:     c.usage,
		Oracle:    c.oracle,
		Documents: c.documents,
		Messenger: c.messenger,
		Config:    c.config,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	c.services = services
	return nil
}

// initWorkers initializes and starts all background workers using providers.
func (c *Container) initWorkers() error {
	workers, documentWorker, err := ProvideWorkers(&WorkerDeps{
		Repos:     c.repositories,
		Services:  c.services,
		WorkerCfg: &c.config.Worker,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers
	c.documentWorker = documentWorker

	if !c.config.Worker.Enabled {
		c.logger.Info("Document worker disabled")
		return nil
	}

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// NewHTTPServer builds the HTTP server over the container's services.
func (c *Container) NewHTTPServer(version string) *httpserver.Server {
	cfg := c.config.Server
	serverCfg := httpserver.ServerConfig{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitWindow: cfg.RateLimitWindow,
		RateLimitMax:    cfg.RateLimitMax,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		Concurrency:     c.config.Worker.Concurrency,
		Version:         version,
	}

	services := httpserver.Services{
		Batches:      c.services.Batch,
		Processing:   c.services.Processing,
		Models:       c.services.Model,
		Usage:        c.services.Usage,
		Notification: c.services.Notification,
		Engine:       c.documents.Engine,
		Parser:       c.documents.Parser,
	}
	if c.config.Worker.Enabled {
		services.Trigger = c.documentWorker
	}

	return httpserver.NewServer(serverCfg, services, &zapLoggerAdapter{logger: c.logger})
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Oracle returns the vision oracle components.
func (c *Container) Oracle() *OracleBundle {
	return c.oracle
}

// Messenger returns the Lark message sender, or nil when disabled.
func (c *Container) Messenger() port.MessageSender {
	return c.messenger
}

// FileStorage returns the file storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Documents returns the document pipeline components.
func (c *Container) Documents() *DocumentBundle {
	return c.documents
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// DocumentWorker returns the background document worker.
func (c *Container) DocumentWorker() *worker.DocumentWorker {
	return c.documentWorker
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service and HTTP Logger
// interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
