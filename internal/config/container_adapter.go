package config

import (
	"github.com/garyjia/expense-audit/internal/container"
	"github.com/garyjia/expense-audit/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-audit/internal/infrastructure/storage"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	providers := make(map[string]openai.ProviderOverride, len(c.Oracle.Providers))
	for key, p := range c.Oracle.Providers {
		providers[key] = openai.ProviderOverride{
			BaseURL:      p.BaseURL,
			DefaultModel: p.DefaultModel,
			APIKey:       p.APIKey,
		}
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Oracle: container.OracleConfig{
			DefaultProvider: c.Oracle.DefaultProvider,
			Providers:       providers,
			PromptsPath:     c.Oracle.PromptsPath,
			Call: openai.Config{
				MaxAttempts:       c.Oracle.MaxAttempts,
				RetryDelay:        c.Oracle.RetryDelay,
				Timeout:           c.Oracle.Timeout,
				MaxTokens:         c.Oracle.MaxTokens,
				Temperature:       c.Oracle.Temperature,
				RequestsPerMinute: c.Oracle.RequestsPerMinute,
				Burst:             c.Oracle.Burst,
			},
			OpenRouterModelsURL: c.Oracle.OpenRouterModelsURL,
			CatalogTimeout:      c.Oracle.CatalogTimeout,
		},
		Render: container.RenderConfig{
			MaxPages:    c.Render.MaxPages,
			JPEGQuality: c.Render.JPEGQuality,
		},
		Rules: container.RulesConfig{
			Companies:            c.Rules.Companies,
			Holidays:             c.Rules.Holidays,
			Dining:               c.Rules.Dining,
			DefaultAllowanceRate: c.Rules.DefaultAllowanceRate,
		},
		Batch: container.BatchConfig{
			PageSize:         c.Batch.PageSize,
			MaxDocumentBytes: c.Batch.MaxDocumentBytes,
		},
		Storage: container.StorageConfig{
			Driver:  c.Storage.Driver,
			BaseDir: c.Storage.BaseDir,
			S3: storage.S3Config{
				Bucket:    c.Storage.S3.Bucket,
				Region:    c.Storage.S3.Region,
				Endpoint:  c.Storage.S3.Endpoint,
				AccessKey: c.Storage.S3.AccessKey,
				SecretKey: c.Storage.S3.SecretKey,
				Prefix:    c.Storage.S3.Prefix,
			},
		},
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			BaseURL:       c.Lark.BaseURL,
			ChatID:        c.Lark.ChatID,
			ReceiveIDType: c.Lark.ReceiveIDType,
			APITimeout:    c.Lark.APITimeout,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			AllowedOrigins:  c.Server.AllowedOrigins,
			MaxUploadBytes:  c.Server.MaxUploadBytes,
			RateLimitWindow: c.RateLimit.Window,
			RateLimitMax:    c.RateLimit.MaxRequests,
		},
		Worker: container.WorkerConfig{
			Enabled:      c.Worker.Enabled,
			Concurrency:  c.Worker.Concurrency,
			PollInterval: c.Worker.PollInterval,
			BatchSize:    c.Worker.BatchSize,
			TaskTimeout:  c.Worker.TaskTimeout,
			ClaimLimit:   c.Worker.ClaimLimit,
		},
	}
}
