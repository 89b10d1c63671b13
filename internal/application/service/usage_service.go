package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// UsageService records and reports oracle token usage
type UsageService interface {
	RecordUsage(ctx context.Context, rec entity.UsageRecord) error
	Report(ctx context.Context) (*entity.UsageReport, error)
	BatchUsage(ctx context.Context, batchID string) (entity.UsageBucket, error)
	Reset(ctx context.Context) error
}

type usageServiceImpl struct {
	usageRepo port.UsageRepository
	now       func() time.Time
	logger    Logger
}

// NewUsageService creates a new UsageService
func NewUsageService(usageRepo port.UsageRepository, logger Logger) UsageService {
	return &usageServiceImpl{
		usageRepo: usageRepo,
		now:       time.Now,
		logger:    logger,
	}
}

// RecordUsage stores one call's tokens. Calls without a provider, a model or
// any tokens are ignored.
func (s *usageServiceImpl) RecordUsage(ctx context.Context, rec entity.UsageRecord) error {
	if rec.Provider == "" || rec.Model == "" {
		return nil
	}
	if rec.PromptTokens <= 0 && rec.CompletionTokens <= 0 {
		return nil
	}
	rec.PromptTokens = max(rec.PromptTokens, 0)
	rec.CompletionTokens = max(rec.CompletionTokens, 0)

	if err := s.usageRepo.Insert(ctx, rec, s.now().UTC()); err != nil {
		s.logger.Error("Failed to record usage", "error", err, "provider", rec.Provider, "model", rec.Model)
		return fmt.Errorf("insert usage: %w", err)
	}
	return nil
}

// Report folds every stored call into total, monthly, per-model and
// per-provider buckets
func (s *usageServiceImpl) Report(ctx context.Context) (*entity.UsageReport, error) {
	events, err := s.usageRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}

	report := entity.NewUsageReport()
	for _, ev := range events {
		report.Add(ev.UsageRecord, ev.CreatedAt.UTC().Format("2006-01"))
	}
	return report, nil
}

// BatchUsage sums the tokens spent on one batch
func (s *usageServiceImpl) BatchUsage(ctx context.Context, batchID string) (entity.UsageBucket, error) {
	return s.usageRepo.SumByBatch(ctx, batchID)
}

// Reset clears all recorded usage
func (s *usageServiceImpl) Reset(ctx context.Context) error {
	if err := s.usageRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	s.logger.Info("Usage statistics reset")
	return nil
}
