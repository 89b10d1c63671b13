package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// BatchItemRepository implements port.BatchItemRepository
type BatchItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBatchItemRepository creates a new batch item repository
func NewBatchItemRepository(db *sql.DB, logger *zap.Logger) port.BatchItemRepository {
	return &BatchItemRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `id, batch_id, file_name, storage_key, mime_type, kind, provider, model,
	status, error, result_json, application_json, analysis_json, refund_status,
	year_confirmed, created_at, updated_at`

// Create inserts a batch item
func (r *BatchItemRepository) Create(ctx context.Context, item *entity.BatchItem) error {
	query := `
		INSERT INTO batch_items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.Status == "" {
		item.Status = entity.ItemStatusPending
	}

	result, application, analysis, err := encodeOutcome(item)
	if err != nil {
		return err
	}

	_, err = sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		item.ID,
		item.BatchID,
		item.FileName,
		item.StorageKey,
		item.MimeType,
		item.Kind,
		item.Provider,
		item.Model,
		item.Status,
		item.Error,
		result,
		application,
		analysis,
		item.RefundStatus,
		item.YearConfirmed,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create batch item", zap.String("item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to create batch item: %w", err)
	}
	return nil
}

// GetByID retrieves a batch item by ID
func (r *BatchItemRepository) GetByID(ctx context.Context, id string) (*entity.BatchItem, error) {
	query := `SELECT ` + itemColumns + ` FROM batch_items WHERE id = ?`

	item, err := scanItem(sqlite.GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get batch item", zap.String("item_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get batch item: %w", err)
	}
	return item, nil
}

// ListByBatch returns the items of a batch in upload order
func (r *BatchItemRepository) ListByBatch(ctx context.Context, batchID string) ([]*entity.BatchItem, error) {
	query := `
		SELECT ` + itemColumns + ` FROM batch_items
		WHERE batch_id = ?
		ORDER BY created_at, id
	`

	rows, err := sqlite.GetExecutor(ctx, r.db).QueryContext(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to list batch items", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("failed to list batch items: %w", err)
	}
	return r.collect(rows)
}

// ClaimPending moves up to limit pending items to processing in one statement
func (r *BatchItemRepository) ClaimPending(ctx context.Context, batchID string, limit int) ([]*entity.BatchItem, error) {
	query := `
		UPDATE batch_items
		SET status = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM batch_items
			WHERE status = ? AND (? = '' OR batch_id = ?)
			ORDER BY created_at, id
			LIMIT ?
		)
		RETURNING id
	`

	exec := sqlite.GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query,
		entity.ItemStatusProcessing,
		time.Now().UTC(),
		entity.ItemStatusPending,
		batchID,
		batchID,
		limit,
	)
	if err != nil {
		r.logger.Error("Failed to claim pending items", zap.Error(err))
		return nil, fmt.Errorf("failed to claim pending items: %w", err)
	}

	var ids []any
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan claimed id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to claim pending items: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	selectQuery := `SELECT ` + itemColumns + ` FROM batch_items WHERE id IN (?` +
		strings.Repeat(", ?", len(ids)-1) + `) ORDER BY created_at, id`

	claimed, err := exec.QueryContext(ctx, selectQuery, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed items: %w", err)
	}
	return r.collect(claimed)
}

// Requeue moves failed items of a batch back to pending
func (r *BatchItemRepository) Requeue(ctx context.Context, batchID string) (int, error) {
	query := `
		UPDATE batch_items
		SET status = ?, error = '', updated_at = ?
		WHERE batch_id = ? AND status = ?
	`
	return r.moveStatus(ctx, query, entity.ItemStatusPending, time.Now().UTC(), batchID, entity.ItemStatusError)
}

// ResetProcessing moves interrupted items back to pending
func (r *BatchItemRepository) ResetProcessing(ctx context.Context) (int, error) {
	query := `
		UPDATE batch_items
		SET status = ?, updated_at = ?
		WHERE status = ?
	`
	return r.moveStatus(ctx, query, entity.ItemStatusPending, time.Now().UTC(), entity.ItemStatusProcessing)
}

func (r *BatchItemRepository) moveStatus(ctx context.Context, query string, args ...any) (int, error) {
	result, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update item status", zap.Error(err))
		return 0, fmt.Errorf("failed to update item status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// SaveResult stores the processing outcome of an item
func (r *BatchItemRepository) SaveResult(ctx context.Context, item *entity.BatchItem) error {
	query := `
		UPDATE batch_items
		SET kind = ?, model = ?, status = ?, error = ?,
			result_json = ?, application_json = ?, analysis_json = ?,
			refund_status = ?, year_confirmed = ?, updated_at = ?
		WHERE id = ?
	`

	result, application, analysis, err := encodeOutcome(item)
	if err != nil {
		return err
	}
	item.UpdatedAt = time.Now().UTC()

	res, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query,
		item.Kind,
		item.Model,
		item.Status,
		item.Error,
		result,
		application,
		analysis,
		item.RefundStatus,
		item.YearConfirmed,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		r.logger.Error("Failed to save item result", zap.String("item_id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to save item result: %w", err)
	}
	return expectAffected(res, "item", item.ID)
}

// UpdateRefundStatus records the reviewer's refund decision
func (r *BatchItemRepository) UpdateRefundStatus(ctx context.Context, id string, status entity.RefundStatus) error {
	query := `UPDATE batch_items SET refund_status = ?, updated_at = ? WHERE id = ?`

	res, err := sqlite.GetExecutor(ctx, r.db).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update refund status", zap.String("item_id", id), zap.Error(err))
		return fmt.Errorf("failed to update refund status: %w", err)
	}
	return expectAffected(res, "item", id)
}

func (r *BatchItemRepository) collect(rows *sql.Rows) ([]*entity.BatchItem, error) {
	defer rows.Close()

	var items []*entity.BatchItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batch items: %w", err)
	}
	return items, nil
}

func scanItem(row rowScanner) (*entity.BatchItem, error) {
	var item entity.BatchItem
	var result, application, analysis sql.NullString

	err := row.Scan(
		&item.ID,
		&item.BatchID,
		&item.FileName,
		&item.StorageKey,
		&item.MimeType,
		&item.Kind,
		&item.Provider,
		&item.Model,
		&item.Status,
		&item.Error,
		&result,
		&application,
		&analysis,
		&item.RefundStatus,
		&item.YearConfirmed,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeColumn(result, &item.Result); err != nil {
		return nil, fmt.Errorf("result of item %s: %w", item.ID, err)
	}
	if err := decodeColumn(application, &item.Application); err != nil {
		return nil, fmt.Errorf("application of item %s: %w", item.ID, err)
	}
	if err := decodeColumn(analysis, &item.Analysis); err != nil {
		return nil, fmt.Errorf("analysis of item %s: %w", item.ID, err)
	}
	return &item, nil
}

func encodeOutcome(item *entity.BatchItem) (result, application, analysis sql.NullString, err error) {
	if result, err = encodeColumn(item.Result); err != nil {
		return
	}
	if application, err = encodeColumn(item.Application); err != nil {
		return
	}
	analysis, err = encodeColumn(item.Analysis)
	return
}

func encodeColumn[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeColumn[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

var _ port.BatchItemRepository = (*BatchItemRepository)(nil)
