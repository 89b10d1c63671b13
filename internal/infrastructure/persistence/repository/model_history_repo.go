package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ModelHistoryRepository implements port.ModelHistoryRepository
type ModelHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewModelHistoryRepository creates a new model history repository
func NewModelHistoryRepository(db *sql.DB, logger *zap.Logger) port.ModelHistoryRepository {
	return &ModelHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// List returns the provider's models, most recent first
func (r *ModelHistoryRepository) List(ctx context.Context, provider string) ([]string, error) {
	query := `SELECT model FROM model_history WHERE provider = ? ORDER BY seq DESC`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, provider)
	if err != nil {
		r.logger.Error("Failed to list model history", zap.String("provider", provider), zap.Error(err))
		return nil, fmt.Errorf("failed to list model history: %w", err)
	}
	defer rows.Close()

	models := make([]string, 0)
	for rows.Next() {
		var model string
		if err := rows.Scan(&model); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, model)
	}
	return models, rows.Err()
}

// Touch moves model to the front of the provider's history and trims it to
// keep entries. Callers should run it inside a transaction.
func (r *ModelHistoryRepository) Touch(ctx context.Context, provider, model string, keep int) error {
	exec := sqlite.GetExecutor(ctx, r.db)

	upsert := `
		INSERT INTO model_history (provider, model, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM model_history))
		ON CONFLICT (provider, model) DO UPDATE SET seq = excluded.seq
	`
	if _, err := exec.ExecContext(ctx, upsert, provider, model); err != nil {
		r.logger.Error("Failed to record model", zap.String("provider", provider), zap.Error(err))
		return fmt.Errorf("failed to record model: %w", err)
	}

	trim := `
		DELETE FROM model_history
		WHERE provider = ? AND model NOT IN (
			SELECT model FROM model_history
			WHERE provider = ?
			ORDER BY seq DESC
			LIMIT ?
		)
	`
	if _, err := exec.ExecContext(ctx, trim, provider, provider, keep); err != nil {
		r.logger.Error("Failed to trim model history", zap.String("provider", provider), zap.Error(err))
		return fmt.Errorf("failed to trim model history: %w", err)
	}
	return nil
}

// Remove deletes one model from the provider's history
func (r *ModelHistoryRepository) Remove(ctx context.Context, provider, model string) error {
	query := `DELETE FROM model_history WHERE provider = ? AND model = ?`

	if _, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, provider, model); err != nil {
		r.logger.Error("Failed to remove model", zap.String("provider", provider), zap.Error(err))
		return fmt.Errorf("failed to remove model: %w", err)
	}
	return nil
}

var _ port.ModelHistoryRepository = (*ModelHistoryRepository)(nil)
