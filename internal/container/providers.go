package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	infraLark "github.com/garyjia/expense-audit/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-audit/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/internal/infrastructure/storage"
	"github.com/garyjia/expense-audit/internal/infrastructure/worker"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/internal/report"
	"github.com/garyjia/expense-audit/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// OracleBundle holds the vision model components.
type OracleBundle struct {
	Providers *openai.ProviderTable
	Oracle    *openai.Oracle
	Catalog   *openai.OpenRouterCatalog
}

// DocumentBundle holds the document pipeline components.
type DocumentBundle struct {
	Renderer *invoice.Renderer
	Parser   *invoice.Parser
	Engine   *audit.Engine
	Writer   *report.ExcelExporter
}

// ServiceDeps holds the dependencies of the application services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Storage   port.FileStorage
	Usage     service.UsageService
	Oracle    *OracleBundle
	Documents *DocumentBundle
	Messenger port.MessageSender
	Config    *Config
	Logger    *zap.Logger
}

// WorkerDeps holds the dependencies of the background workers.
type WorkerDeps struct {
	Repos     *RepositoryBundle
	Services  *ServiceBundle
	WorkerCfg *WorkerConfig
	Logger    *zap.Logger
}

// ProvideDatabase opens the sqlite database, runs the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
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

	applied, err := database.NewMigrator(db, logger).RunMigrations(migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if applied > 0 {
		logger.Info("Database migrations applied", zap.Int("count", applied))
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Batch:        repository.NewBatchRepository(sqlDB, logger),
		BatchItem:    repository.NewBatchItemRepository(sqlDB, logger),
		Usage:        repository.NewUsageRepository(sqlDB, logger),
		ModelHistory: repository.NewModelHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideStorage creates the document store selected by cfg.Driver.
func ProvideStorage(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return storage.NewLocalFileStorage(cfg.BaseDir, logger), nil
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideOracle builds the provider table, the vision oracle and the free
// model catalog. usage receives the token counts of every call.
func ProvideOracle(cfg *OracleConfig, usage port.UsageRecorder, logger *zap.Logger) (*OracleBundle, error) {
	providers, err := openai.NewProviderTable(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("invalid provider overrides: %w", err)
	}
	if !providers.IsValid(cfg.DefaultProvider) {
		return nil, fmt.Errorf("%w: default provider %s", entity.ErrInvalidProvider, cfg.DefaultProvider)
	}

	prompts := openai.DefaultPrompts()
	if cfg.PromptsPath != "" {
		prompts, err = openai.LoadPrompts(cfg.PromptsPath)
		if err != nil {
			return nil, err
		}
	}

	var catalogKey string
	if p, err := providers.Lookup("openrouter"); err == nil {
		catalogKey = p.APIKey
	}

	return &OracleBundle{
		Providers: providers,
		Oracle:    openai.NewOracle(providers, prompts, usage, cfg.Call, logger),
		Catalog:   openai.NewOpenRouterCatalog(cfg.OpenRouterModelsURL, catalogKey, cfg.CatalogTimeout, logger),
	}, nil
}

// ProvideDocuments creates the renderer, output parser, rule engine and report
// writer.
func ProvideDocuments(render *RenderConfig, rules *RulesConfig, logger *zap.Logger) (*DocumentBundle, error) {
	schemas, err := invoice.LoadSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to load output schemas: %w", err)
	}

	return &DocumentBundle{
		Renderer: invoice.NewRenderer(render.MaxPages, render.JPEGQuality, logger),
		Parser:   invoice.NewParser(schemas, logger),
		Engine:   ProvideEngine(rules),
		Writer:   report.NewExcelExporter(logger),
	}, nil
}

// ProvideEngine creates the rule engine. Empty rule data falls back to the
// built-in registry, calendar and dining policy.
func ProvideEngine(rules *RulesConfig) *audit.Engine {
	registry := audit.DefaultCompanyRegistry()
	if len(rules.Companies) > 0 {
		registry = audit.NewCompanyRegistry(rules.Companies)
	}

	calendar := audit.DefaultHolidayCalendar()
	if len(rules.Holidays) > 0 {
		calendar = audit.NewHolidayCalendar(rules.Holidays)
	}

	dining := entity.DefaultDiningPolicy()
	if rules.Dining != nil {
		dining = *rules.Dining
	}

	return audit.NewEngine(registry, calendar, dining)
}

// ProvideMessenger creates the Lark messenger, or nil when notifications are
// disabled.
func ProvideMessenger(cfg *LarkConfig, logger *zap.Logger) port.MessageSender {
	if !cfg.Enabled {
		return nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}, logger)
	logger.Info("Lark notifications enabled",
		zap.String("app_id", client.GetAppID()),
		zap.String("receive_id_type", cfg.ReceiveIDType))
	return infraLark.NewMessenger(client, cfg.ReceiveIDType, logger)
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Oracle == nil || deps.Documents == nil {
		return nil, fmt.Errorf("service dependencies are incomplete")
	}

	cfg := deps.Config
	logger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos
	docs := deps.Documents

	usage := deps.Usage
	if usage == nil {
		usage = service.NewUsageService(repos.Usage, logger)
	}
	models := service.NewModelService(repos.ModelHistory, deps.Oracle.Providers, deps.Oracle.Catalog, logger)

	processing := service.NewProcessingService(
		repos.Batch,
		repos.BatchItem,
		deps.Storage,
		docs.Renderer,
		deps.Oracle.Oracle,
		deps.Oracle.Providers,
		models,
		docs.Parser,
		docs.Engine,
		service.ProcessingConfig{
			TaskTimeout: cfg.Worker.TaskTimeout,
			ClaimLimit:  cfg.Worker.ClaimLimit,
		},
		logger,
	)

	batches := service.NewBatchService(
		repos.Batch,
		repos.BatchItem,
		deps.TxManager,
		deps.Storage,
		deps.Oracle.Providers,
		usage,
		docs.Writer,
		docs.Engine,
		service.BatchConfig{
			DefaultAllowanceRate: cfg.Rules.DefaultAllowanceRate,
			DefaultPageSize:      cfg.Batch.PageSize,
			MaxDocumentBytes:     cfg.Batch.MaxDocumentBytes,
			DefaultProvider:      cfg.Oracle.DefaultProvider,
		},
		logger,
	)

	bundle := &ServiceBundle{
		Batch:      batches,
		Processing: processing,
		Model:      models,
		Usage:      usage,
	}

	if deps.Messenger != nil {
		bundle.Notification = service.NewNotificationService(
			repos.Batch,
			repos.BatchItem,
			deps.Messenger,
			docs.Engine,
			service.NotificationConfig{
				Enabled:       cfg.Lark.Enabled,
				ChatID:        cfg.Lark.ChatID,
				AllowanceRate: cfg.Rules.DefaultAllowanceRate,
			},
			logger,
		)
	}

	return bundle, nil
}

// ProvideWorkers creates the worker manager with the document worker
// registered. The workers are not started.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, *worker.DocumentWorker, error) {
	if deps == nil || deps.Repos == nil || deps.Services == nil || deps.WorkerCfg == nil {
		return nil, nil, fmt.Errorf("worker dependencies are incomplete")
	}

	var notifier worker.BatchNotifier
	if deps.Services.Notification != nil {
		notifier = deps.Services.Notification
	}

	documents := worker.NewDocumentWorker(
		worker.DocumentWorkerConfig{
			PollInterval: deps.WorkerCfg.PollInterval,
			BatchSize:    deps.WorkerCfg.BatchSize,
			Concurrency:  deps.WorkerCfg.Concurrency,
		},
		deps.Repos.BatchItem,
		deps.Services.Processing,
		notifier,
		deps.Logger,
	)

	manager := worker.NewWorkerManager(deps.Logger)
	manager.Register(documents)
	return manager, documents, nil
}
