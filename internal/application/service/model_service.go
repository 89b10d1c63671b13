package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// MaxModelHistory caps the remembered models per provider
const MaxModelHistory = 50

// ModelService manages the per-provider model history
type ModelService interface {
	List(ctx context.Context, provider string) ([]string, error)
	Add(ctx context.Context, provider, model string) ([]string, error)
	Remove(ctx context.Context, provider, model string) ([]string, error)
	FreeVisionModels(ctx context.Context) ([]string, error)
}

type modelServiceImpl struct {
	historyRepo port.ModelHistoryRepository
	providers   port.ProviderDirectory
	catalog     port.ModelCatalog
	logger      Logger
}

// NewModelService creates a new ModelService
func NewModelService(
	historyRepo port.ModelHistoryRepository,
	providers port.ProviderDirectory,
	catalog port.ModelCatalog,
	logger Logger,
) ModelService {
	return &modelServiceImpl{
		historyRepo: historyRepo,
		providers:   providers,
		catalog:     catalog,
		logger:      logger,
	}
}

// List returns the provider's models, most recent first
func (s *modelServiceImpl) List(ctx context.Context, provider string) ([]string, error) {
	if err := s.checkProvider(provider); err != nil {
		return nil, err
	}
	return s.historyRepo.List(ctx, provider)
}

// Add moves model to the front of the provider's history
func (s *modelServiceImpl) Add(ctx context.Context, provider, model string) ([]string, error) {
	if err := s.checkProvider(provider); err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%w: model is required", entity.ErrInvalidInput)
	}
	if err := s.historyRepo.Touch(ctx, provider, model, MaxModelHistory); err != nil {
		return nil, fmt.Errorf("touch model: %w", err)
	}
	return s.historyRepo.List(ctx, provider)
}

// Remove drops model from the provider's history
func (s *modelServiceImpl) Remove(ctx context.Context, provider, model string) ([]string, error) {
	if err := s.checkProvider(provider); err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("%w: model is required", entity.ErrInvalidInput)
	}
	if err := s.historyRepo.Remove(ctx, provider, model); err != nil {
		return nil, fmt.Errorf("remove model: %w", err)
	}
	s.logger.Info("Model removed from history", "provider", provider, "model", model)
	return s.historyRepo.List(ctx, provider)
}

// FreeVisionModels lists the free OpenRouter models that accept images
func (s *modelServiceImpl) FreeVisionModels(ctx context.Context) ([]string, error) {
	if s.catalog == nil {
		return nil, fmt.Errorf("%w: model catalog not configured", entity.ErrOracleUnavailable)
	}
	return s.catalog.FreeVisionModels(ctx)
}

func (s *modelServiceImpl) checkProvider(provider string) error {
	if !s.providers.IsValid(provider) {
		return fmt.Errorf("%w: %s", entity.ErrInvalidProvider, provider)
	}
	return nil
}
