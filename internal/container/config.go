// Package container provides dependency injection and lifecycle management
// for the expense audit service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-audit/internal/infrastructure/storage"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Oracle configuration
	Oracle OracleConfig

	// Render configuration
	Render RenderConfig

	// Rules configuration
	Rules RulesConfig

	// Batch configuration
	Batch BatchConfig

	// Storage configuration
	Storage StorageConfig

	// Lark configuration
	Lark LarkConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// OracleConfig holds vision model settings.
type OracleConfig struct {
	// DefaultProvider is used for uploads that name no provider
	DefaultProvider string

	// Providers overrides the built-in provider table
	Providers map[string]openai.ProviderOverride

	// PromptsPath is an optional prompts file; empty uses the embedded prompts
	PromptsPath string

	// Call holds retry, timeout and rate settings
	Call openai.Config

	// OpenRouterModelsURL overrides the model catalog endpoint
	OpenRouterModelsURL string

	// CatalogTimeout bounds a catalog request
	CatalogTimeout time.Duration
}

// RenderConfig holds PDF rendering settings.
type RenderConfig struct {
	MaxPages    int
	JPEGQuality int
}

// RulesConfig holds the audit rule data.
type RulesConfig struct {
	// Companies maps company names to tax IDs; empty uses the built-in registry
	Companies map[string]string

	// Holidays lists YYYY-MM-DD public holidays; empty uses the built-in calendar
	Holidays []string

	// Dining overrides the dining policy when set
	Dining *entity.DiningPolicy

	// DefaultAllowanceRate is the daily travel allowance
	DefaultAllowanceRate float64
}

// BatchConfig holds batch review defaults.
type BatchConfig struct {
	PageSize         int
	MaxDocumentBytes int64
}

// StorageConfig selects the document store.
type StorageConfig struct {
	// Driver is "local" or "s3"
	Driver string

	// BaseDir is the local storage root
	BaseDir string

	// S3 holds the object store settings
	S3 storage.S3Config
}

// LarkConfig holds Lark notification settings.
type LarkConfig struct {
	// Enabled turns batch summaries on
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// BaseURL overrides the open platform domain
	BaseURL string

	// ChatID receives the batch summaries
	ChatID string

	// ReceiveIDType is the Lark receive_id_type of ChatID
	ReceiveIDType string

	// APITimeout is the timeout for API calls
	APITimeout time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	MaxUploadBytes int64

	// RateLimitWindow and RateLimitMax bound requests per client; zero
	// disables the limiter
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Enabled starts the document worker
	Enabled bool

	// Concurrency bounds parallel item processing
	Concurrency int

	// PollInterval is how often pending items are claimed
	PollInterval time.Duration

	// BatchSize is the number of items claimed per poll
	BatchSize int

	// TaskTimeout bounds the processing of one item
	TaskTimeout time.Duration

	// ClaimLimit bounds the items claimed by one processing request
	ClaimLimit int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/expense-audit.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Oracle: OracleConfig{
			DefaultProvider: "siliconflow",
			Call:            openai.DefaultConfig(),
			CatalogTimeout:  15 * time.Second,
		},
		Render: RenderConfig{
			MaxPages:    3,
			JPEGQuality: 85,
		},
		Rules: RulesConfig{
			DefaultAllowanceRate: 100,
		},
		Batch: BatchConfig{
			PageSize:         20,
			MaxDocumentBytes: 20 << 20,
		},
		Storage: StorageConfig{
			Driver:  "local",
			BaseDir: "data/documents",
		},
		Lark: LarkConfig{
			ReceiveIDType: "chat_id",
			APITimeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			MaxUploadBytes:  20 << 20,
			RateLimitWindow: time.Minute,
			RateLimitMax:    180,
		},
		Worker: WorkerConfig{
			Enabled:      true,
			Concurrency:  2,
			PollInterval: 5 * time.Second,
			BatchSize:    10,
			TaskTimeout:  2 * time.Minute,
			ClaimLimit:   100,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Oracle.DefaultProvider == "" {
		return fmt.Errorf("default oracle provider is required")
	}

	switch c.Storage.Driver {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage base dir is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "" || c.Lark.ChatID == "") {
		return fmt.Errorf("lark app id, app secret and chat id are required when notifications are enabled")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1")
	}

	return nil
}
