package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Render    RenderConfig    `mapstructure:"render"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Lark      LarkConfig      `mapstructure:"lark"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ProviderConfig overrides a built-in oracle provider
type ProviderConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	APIKey       string `mapstructure:"api_key"`
}

// OracleConfig holds vision oracle configuration
type OracleConfig struct {
	DefaultProvider     string                    `mapstructure:"default_provider"`
	Providers           map[string]ProviderConfig `mapstructure:"providers"`
	PromptsPath         string                    `mapstructure:"prompts_path"`
	MaxAttempts         int                       `mapstructure:"max_attempts"`
	RetryDelay          time.Duration             `mapstructure:"retry_delay"`
	Timeout             time.Duration             `mapstructure:"timeout"`
	MaxTokens           int                       `mapstructure:"max_tokens"`
	Temperature         float32                   `mapstructure:"temperature"`
	RequestsPerMinute   int                       `mapstructure:"requests_per_minute"`
	Burst               int                       `mapstructure:"burst"`
	OpenRouterModelsURL string                    `mapstructure:"openrouter_models_url"`
	CatalogTimeout      time.Duration             `mapstructure:"catalog_timeout"`
}

// RenderConfig holds document rendering configuration
type RenderConfig struct {
	MaxPages    int `mapstructure:"max_pages"`
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

// WorkerConfig holds background processing configuration
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Concurrency  int           `mapstructure:"concurrency"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	ClaimLimit   int           `mapstructure:"claim_limit"`
}

// RulesConfig holds the audit rule data. Empty values use the built-in
// registry, calendar and dining policy.
type RulesConfig struct {
	Companies            map[string]string    `mapstructure:"companies"`
	Holidays             []string             `mapstructure:"holidays"`
	Dining               *entity.DiningPolicy `mapstructure:"dining"`
	DefaultAllowanceRate float64              `mapstructure:"default_allowance_rate"`
}

// BatchConfig holds batch review defaults
type BatchConfig struct {
	PageSize         int   `mapstructure:"page_size"`
	MaxDocumentBytes int64 `mapstructure:"max_document_bytes"`
}

// S3Config holds object store configuration
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// StorageConfig selects where uploaded documents are kept
type StorageConfig struct {
	Driver  string   `mapstructure:"driver"`
	BaseDir string   `mapstructure:"base_dir"`
	S3      S3Config `mapstructure:"s3"`
}

// RateLimitConfig holds the per-client HTTP rate limit
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// LarkConfig holds Lark notification configuration
type LarkConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	AppID         string        `mapstructure:"app_id"`
	AppSecret     string        `mapstructure:"app_secret"`
	BaseURL       string        `mapstructure:"base_url"`
	ChatID        string        `mapstructure:"chat_id"`
	ReceiveIDType string        `mapstructure:"receive_id_type"`
	APITimeout    time.Duration `mapstructure:"api_timeout"`
}

// Storage drivers
const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// providerEnvKeys maps provider keys to the environment variables holding
// their API keys
var providerEnvKeys = map[string]string{
	"siliconflow": "SILICONFLOW_API_KEY",
	"kimi":        "MOONSHOT_API_KEY",
	"minimax":     "MINIMAX_API_KEY",
	"zhipu":       "ZHIPU_API_KEY",
	"dashscope":   "DASHSCOPE_API_KEY",
	"openrouter":  "OPENROUTER_API_KEY",
}

// LoadDotEnv loads environment variables from a .env file. A missing file is
// not an error; variables already set keep their value.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file and environment variables. An empty
// configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	// Database defaults
	v.SetDefault("database.path", "data/expense-audit.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Oracle defaults
	v.SetDefault("oracle.default_provider", "siliconflow")
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.retry_delay", time.Second)
	v.SetDefault("oracle.timeout", 60*time.Second)
	v.SetDefault("oracle.max_tokens", 1024)
	v.SetDefault("oracle.temperature", 0.1)
	v.SetDefault("oracle.requests_per_minute", 180)
	v.SetDefault("oracle.burst", 5)
	v.SetDefault("oracle.catalog_timeout", 15*time.Second)

	// Render defaults
	v.SetDefault("render.max_pages", 3)
	v.SetDefault("render.jpeg_quality", 85)

	// Worker defaults
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.poll_interval", 5*time.Second)
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.task_timeout", 2*time.Minute)
	v.SetDefault("worker.claim_limit", 100)

	// Rules defaults
	v.SetDefault("rules.default_allowance_rate", 100)

	// Batch defaults
	v.SetDefault("batch.page_size", 20)
	v.SetDefault("batch.max_document_bytes", 20<<20)

	// Storage defaults
	v.SetDefault("storage.driver", StorageDriverLocal)
	v.SetDefault("storage.base_dir", "data/documents")
	v.SetDefault("storage.s3.region", "us-east-1")

	// Rate limit defaults
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.max_requests", 180)

	// Lark defaults
	v.SetDefault("lark.enabled", false)
	v.SetDefault("lark.receive_id_type", "chat_id")
	v.SetDefault("lark.api_timeout", 30*time.Second)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.chat_id", "LARK_CHAT_ID")
	_ = v.BindEnv("storage.s3.access_key", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.s3.secret_key", "S3_SECRET_ACCESS_KEY")

	for provider, env := range providerEnvKeys {
		_ = v.BindEnv("oracle.providers."+provider+".api_key", env)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Oracle.DefaultProvider == "" {
		return fmt.Errorf("oracle.default_provider is required")
	}
	if c.Oracle.MaxAttempts < 1 {
		return fmt.Errorf("oracle.max_attempts must be at least 1")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1")
	}

	if c.Rules.DefaultAllowanceRate < 0 {
		return fmt.Errorf("rules.default_allowance_rate must not be negative")
	}
	for name, taxID := range c.Rules.Companies {
		if err := utils.ValidateTaxID(taxID); err != nil {
			return fmt.Errorf("rules.companies[%s]: %w", name, err)
		}
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required")
		}
	case StorageDriverS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.RateLimit.MaxRequests < 0 || c.RateLimit.Window < 0 {
		return fmt.Errorf("ratelimit values must not be negative")
	}

	// Lark credentials are only needed when notifications are on
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("lark.chat_id is required")
		}
	}

	return nil
}
