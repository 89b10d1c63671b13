package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BatchRepository implements port.BatchRepository
type BatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *sql.DB, logger *zap.Logger) port.BatchRepository {
	return &BatchRepository{
		db:     db,
		logger: logger,
	}
}

const batchColumns = `id, mode, label, application_start, application_end, created_at, updated_at`

// Create inserts a batch
func (r *BatchRepository) Create(ctx context.Context, batch *entity.Batch) error {
	query := `
		INSERT INTO batches (` + batchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	_, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		batch.ID,
		batch.Mode,
		batch.Label,
		batch.ApplicationStart,
		batch.ApplicationEnd,
		batch.CreatedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create batch", zap.String("batch_id", batch.ID), zap.Error(err))
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*entity.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ?`

	batch, err := scanBatch(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get batch", zap.String("batch_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// List returns batches newest first
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]*entity.Batch, error) {
	query := `
		SELECT ` + batchColumns + ` FROM batches
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list batches", zap.Error(err))
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*entity.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// SetApplicationRange stores the travel application window of a batch
func (r *BatchRepository) SetApplicationRange(ctx context.Context, id, start, end string) error {
	query := `
		UPDATE batches
		SET application_start = ?, application_end = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, start, end, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update application range", zap.String("batch_id", id), zap.Error(err))
		return fmt.Errorf("failed to update application range: %w", err)
	}
	return expectAffected(result, "batch", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*entity.Batch, error) {
	var batch entity.Batch
	err := row.Scan(
		&batch.ID,
		&batch.Mode,
		&batch.Label,
		&batch.ApplicationStart,
		&batch.ApplicationEnd,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func expectAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, entity.ErrNotFound)
	}
	return nil
}

var _ port.BatchRepository = (*BatchRepository)(nil)
