package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"go.uber.org/zap"
)

const (
	// OpenRouterModelsURL lists every model OpenRouter serves.
	OpenRouterModelsURL = "https://openrouter.ai/api/v1/models"

	catalogTTL = 10 * time.Minute
)

// CatalogError is a non-2xx answer from the models endpoint.
type CatalogError struct {
	Status int
	Body   string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("openrouter models request failed: %d %s", e.Status, e.Body)
}

type openRouterModel struct {
	ID           string `json:"id"`
	Architecture struct {
		InputModalities []string `json:"input_modalities"`
	} `json:"architecture"`
	Pricing map[string]any `json:"pricing"`
}

// OpenRouterCatalog lists free image-capable OpenRouter models
type OpenRouterCatalog struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	models    []string
	fetchedAt time.Time
}

// NewOpenRouterCatalog creates a catalog client. An empty url uses the public
// endpoint.
func NewOpenRouterCatalog(url, apiKey string, timeout time.Duration, logger *zap.Logger) *OpenRouterCatalog {
	if url == "" {
		url = OpenRouterModelsURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenRouterCatalog{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// FreeVisionModels returns sorted model ids, served from cache for ten minutes.
func (c *OpenRouterCatalog) FreeVisionModels(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.models) > 0 && c.now().Sub(c.fetchedAt) < catalogTTL {
		return append([]string(nil), c.models...), nil
	}

	models, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.models = models
	c.fetchedAt = c.now()

	c.logger.Info("OpenRouter free vision models refreshed", zap.Int("count", len(models)))
	return append([]string(nil), models...), nil
}

func (c *OpenRouterCatalog) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build models request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter models request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read models response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CatalogError{Status: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Data []openRouterModel `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &CatalogError{Status: http.StatusBadGateway, Body: "invalid OpenRouter models response"}
	}

	models := make([]string, 0)
	for _, m := range payload.Data {
		if m.ID == "" || !acceptsImages(m) || !isFreePricing(m.Pricing) {
			continue
		}
		models = append(models, m.ID)
	}
	sort.Strings(models)
	return models, nil
}

func acceptsImages(m openRouterModel) bool {
	for _, modality := range m.Architecture.InputModalities {
		if modality == "image" {
			return true
		}
	}
	return false
}

func isFreePricing(pricing map[string]any) bool {
	if len(pricing) == 0 {
		return false
	}
	for _, v := range pricing {
		switch p := v.(type) {
		case nil:
		case string:
			if p != "0" {
				return false
			}
		case float64:
			if p != 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

var _ port.ModelCatalog = (*OpenRouterCatalog)(nil)
