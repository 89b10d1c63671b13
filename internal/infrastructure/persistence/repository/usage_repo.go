package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UsageRepository implements port.UsageRepository
type UsageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsageRepository creates a new token usage repository
func NewUsageRepository(db *sql.DB, logger *zap.Logger) port.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores one usage event
func (r *UsageRepository) Insert(ctx context.Context, rec entity.UsageRecord, at time.Time) error {
	query := `
		INSERT INTO usage_events (provider, model, batch_id, prompt_tokens, completion_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		rec.Provider,
		rec.Model,
		rec.BatchID,
		rec.PromptTokens,
		rec.CompletionTokens,
		at.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to insert usage event", zap.String("provider", rec.Provider), zap.Error(err))
		return fmt.Errorf("failed to insert usage event: %w", err)
	}
	return nil
}

// ListAll returns every usage event in insertion order
func (r *UsageRepository) ListAll(ctx context.Context) ([]port.UsageEvent, error) {
	query := `
		SELECT provider, model, batch_id, prompt_tokens, completion_tokens, created_at
		FROM usage_events
		ORDER BY id
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list usage events", zap.Error(err))
		return nil, fmt.Errorf("failed to list usage events: %w", err)
	}
	defer rows.Close()

	var events []port.UsageEvent
	for rows.Next() {
		var ev port.UsageEvent
		if err := rows.Scan(
			&ev.Provider,
			&ev.Model,
			&ev.BatchID,
			&ev.PromptTokens,
			&ev.CompletionTokens,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SumByBatch totals the tokens spent on one batch
func (r *UsageRepository) SumByBatch(ctx context.Context, batchID string) (entity.UsageBucket, error) {
	query := `
		SELECT COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0)
		FROM usage_events
		WHERE batch_id = ?
	`

	var bucket entity.UsageBucket
	err := sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, batchID).Scan(&bucket.Prompt, &bucket.Completion)
	if err != nil {
		r.logger.Error("Failed to sum batch usage", zap.String("batch_id", batchID), zap.Error(err))
		return entity.UsageBucket{}, fmt.Errorf("failed to sum batch usage: %w", err)
	}
	bucket.Total = bucket.Prompt + bucket.Completion
	return bucket, nil
}

// DeleteAll removes every usage event
func (r *UsageRepository) DeleteAll(ctx context.Context) error {
	if _, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM usage_events`); err != nil {
		r.logger.Error("Failed to reset usage", zap.Error(err))
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

var _ port.UsageRepository = (*UsageRepository)(nil)
