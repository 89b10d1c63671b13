package openai

import (
	"fmt"
	"sort"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Provider describes an OpenAI-compatible vision endpoint.
type Provider struct {
	Key          string
	DisplayName  string
	BaseURL      string
	DefaultModel string
	APIKey       string

	// FileUpload providers receive the document through the files API
	// instead of an inline image part.
	FileUpload bool
}

// DefaultProviders returns the built-in provider table.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		"siliconflow": {
			Key:          "siliconflow",
			DisplayName:  "SiliconFlow",
			BaseURL:      "https://api.siliconflow.cn/v1",
			DefaultModel: "Qwen/Qwen3-VL-32B-Instruct",
		},
		"kimi": {
			Key:          "kimi",
			DisplayName:  "Kimi (Moonshot)",
			BaseURL:      "https://api.moonshot.cn/v1",
			DefaultModel: "moonshot-v1-8k",
			FileUpload:   true,
		},
		"minimax": {
			Key:          "minimax",
			DisplayName:  "MiniMax",
			BaseURL:      "https://api.minimax.chat/v1",
			DefaultModel: "abab6.5s-chat",
		},
		"zhipu": {
			Key:          "zhipu",
			DisplayName:  "Zhipu AI",
			BaseURL:      "https://open.bigmodel.cn/api/paas/v4",
			DefaultModel: "glm-4v",
		},
		"dashscope": {
			Key:          "dashscope",
			DisplayName:  "DashScope (Aliyun)",
			BaseURL:      "https://dashscope.aliyuncs.com/compatible-mode/v1",
			DefaultModel: "qwen-vl-max",
		},
		"openrouter": {
			Key:          "openrouter",
			DisplayName:  "OpenRouter",
			BaseURL:      "https://openrouter.ai/api/v1",
			DefaultModel: "openrouter/free",
		},
	}
}

// ProviderOverride replaces parts of a built-in provider. Empty fields keep
// the built-in value.
type ProviderOverride struct {
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	APIKey       string `mapstructure:"api_key"`
}

// ProviderTable is an immutable set of providers.
type ProviderTable struct {
	providers map[string]Provider
}

// NewProviderTable merges overrides into the built-in providers. Overrides for
// unknown keys are rejected.
func NewProviderTable(overrides map[string]ProviderOverride) (*ProviderTable, error) {
	providers := DefaultProviders()
	for key, o := range overrides {
		p, ok := providers[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", entity.ErrInvalidProvider, key)
		}
		if o.BaseURL != "" {
			p.BaseURL = o.BaseURL
		}
		if o.DefaultModel != "" {
			p.DefaultModel = o.DefaultModel
		}
		if o.APIKey != "" {
			p.APIKey = o.APIKey
		}
		providers[key] = p
	}
	return &ProviderTable{providers: providers}, nil
}

// Lookup returns the provider for key.
func (t *ProviderTable) Lookup(key string) (Provider, error) {
	p, ok := t.providers[key]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", entity.ErrInvalidProvider, key)
	}
	return p, nil
}

// IsValid reports whether key names a known provider.
func (t *ProviderTable) IsValid(key string) bool {
	_, ok := t.providers[key]
	return ok
}

// Keys returns the provider keys in sorted order.
func (t *ProviderTable) Keys() []string {
	keys := make([]string, 0, len(t.providers))
	for k := range t.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultModel returns the configured default model of key, or "" when key is
// unknown.
func (t *ProviderTable) DefaultModel(key string) string {
	return t.providers[key].DefaultModel
}

var _ port.ProviderDirectory = (*ProviderTable)(nil)
