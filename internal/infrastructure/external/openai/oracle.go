package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const filePurposeExtract openai.PurposeType = "file-extract"

// Config holds oracle call parameters
type Config struct {
	MaxAttempts       int
	RetryDelay        time.Duration
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float32
	RequestsPerMinute int
	Burst             int
}

// DefaultConfig returns the standard call parameters.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		RetryDelay:        time.Second,
		Timeout:           60 * time.Second,
		MaxTokens:         1024,
		Temperature:       0.1,
		RequestsPerMinute: 180,
		Burst:             5,
	}
}

// Oracle implements port.Oracle over OpenAI-compatible chat completions
type Oracle struct {
	providers  *ProviderTable
	prompts    *PromptConfig
	usage      port.UsageRecorder
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOracle creates a vision oracle. usage may be nil.
func NewOracle(providers *ProviderTable, prompts *PromptConfig, usage port.UsageRecorder, cfg Config, logger *zap.Logger) *Oracle {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Oracle{
		providers:  providers,
		prompts:    prompts,
		usage:      usage,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// ExtractInvoice asks the model for invoice fields
func (o *Oracle) ExtractInvoice(ctx context.Context, req port.OracleRequest) (string, error) {
	return o.complete(ctx, req, o.prompts.Invoice)
}

// ExtractDiningApplication asks the model whether the document is a dining
// application and for its fields
func (o *Oracle) ExtractDiningApplication(ctx context.Context, req port.OracleRequest) (string, error) {
	return o.complete(ctx, req, o.prompts.DiningApplication)
}

// Classify asks the model to classify and name an arbitrary document
func (o *Oracle) Classify(ctx context.Context, req port.OracleRequest) (string, error) {
	return o.complete(ctx, req, o.prompts.Classifier)
}

// Check sends a text-only request to verify credentials and connectivity.
func (o *Oracle) Check(ctx context.Context, providerKey, model, apiKey string) error {
	provider, err := o.providers.Lookup(providerKey)
	if err != nil {
		return err
	}
	if model == "" {
		model = provider.DefaultModel
	}
	client := o.client(provider, apiKey)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 8,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		return fmt.Errorf("%s check failed: %w", providerKey, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%s check failed: no choices returned", providerKey)
	}
	return nil
}

func (o *Oracle) complete(ctx context.Context, req port.OracleRequest, prompt Prompt) (string, error) {
	provider, err := o.providers.Lookup(req.Provider)
	if err != nil {
		return "", err
	}
	if len(req.Image) == 0 {
		return "", fmt.Errorf("%w: empty document", entity.ErrInvalidInput)
	}
	model := req.Model
	if model == "" {
		model = provider.DefaultModel
	}

	userText, err := renderTemplate(prompt.UserTemplate, PromptData{
		FileName: req.FileName,
		Provider: provider.Key,
		Model:    model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render user prompt: %w", err)
	}

	client := o.client(provider, req.APIKey)
	limiter := o.limiter(provider.Key)

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}

		content, err := o.attempt(ctx, client, provider, model, prompt.System, userText, req)
		if err == nil {
			return content, nil
		}
		lastErr = err

		o.logger.Warn("Oracle call failed",
			zap.String("provider", provider.Key),
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.cfg.MaxAttempts),
			zap.Error(err))

		if errors.Is(err, errEmptyContent) || attempt == o.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.cfg.RetryDelay):
		}
	}

	return "", fmt.Errorf("%s: %w: %v", provider.Key, entity.ErrOracleUnavailable, lastErr)
}

var errEmptyContent = errors.New("API returned empty content")

func (o *Oracle) attempt(ctx context.Context, client *openai.Client, provider Provider, model, system, userText string, req port.OracleRequest) (string, error) {
	user, err := o.userMessage(ctx, client, provider, userText, req)
	if err != nil {
		return "", err
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			user,
		},
	})
	if err != nil {
		return "", err
	}

	o.recordUsage(ctx, provider.Key, model, req.BatchID, resp.Usage)

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errEmptyContent
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *Oracle) userMessage(ctx context.Context, client *openai.Client, provider Provider, userText string, req port.OracleRequest) (openai.ChatCompletionMessage, error) {
	if provider.FileUpload {
		name := req.FileName
		if name == "" {
			name = "document"
		}
		file, err := client.CreateFileBytes(ctx, openai.FileBytesRequest{
			Name:    name,
			Bytes:   req.Image,
			Purpose: filePurposeExtract,
		})
		if err != nil {
			return openai.ChatCompletionMessage{}, fmt.Errorf("file upload failed: %w", err)
		}
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("file:%s; %s", file.ID, userText),
		}, nil
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(req.Image))

	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: userText},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailHigh,
				},
			},
		},
	}, nil
}

func (o *Oracle) recordUsage(ctx context.Context, provider, model, batchID string, usage openai.Usage) {
	if o.usage == nil || (usage.PromptTokens == 0 && usage.CompletionTokens == 0) {
		return
	}
	err := o.usage.RecordUsage(ctx, entity.UsageRecord{
		Provider:         provider,
		Model:            model,
		PromptTokens:     int64(usage.PromptTokens),
		CompletionTokens: int64(usage.CompletionTokens),
		BatchID:          batchID,
	})
	if err != nil {
		o.logger.Warn("Failed to record token usage", zap.String("provider", provider), zap.Error(err))
	}
}

func (o *Oracle) client(provider Provider, apiKey string) *openai.Client {
	key := utils.SanitizeAPIKey(apiKey)
	if key == "" {
		key = utils.SanitizeAPIKey(provider.APIKey)
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = provider.BaseURL
	cfg.HTTPClient = o.httpClient
	return openai.NewClientWithConfig(cfg)
}

func (o *Oracle) limiter(provider string) *rate.Limiter {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, ok := o.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(o.cfg.RequestsPerMinute)/60), o.cfg.Burst)
		o.limiters[provider] = l
	}
	return l
}

var _ port.Oracle = (*Oracle)(nil)
