package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// BatchRepository defines persistence operations for Batch
type BatchRepository interface {
	Create(ctx context.Context, batch *entity.Batch) error
	GetByID(ctx context.Context, id string) (*entity.Batch, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Batch, error)
	SetApplicationRange(ctx context.Context, id, start, end string) error
}

// BatchItemRepository defines persistence operations for BatchItem
type BatchItemRepository interface {
	Create(ctx context.Context, item *entity.BatchItem) error
	GetByID(ctx context.Context, id string) (*entity.BatchItem, error)
	ListByBatch(ctx context.Context, batchID string) ([]*entity.BatchItem, error)

	// ClaimPending atomically moves up to limit pending items to processing
	// and returns them. An empty batchID claims across all batches.
	ClaimPending(ctx context.Context, batchID string, limit int) ([]*entity.BatchItem, error)

	// Requeue moves error items of a batch back to pending.
	Requeue(ctx context.Context, batchID string) (int, error)

	// ResetProcessing moves items left in processing by a previous run back
	// to pending.
	ResetProcessing(ctx context.Context) (int, error)

	// SaveResult stores the outcome of processing an item.
	SaveResult(ctx context.Context, item *entity.BatchItem) error

	UpdateRefundStatus(ctx context.Context, id string, status entity.RefundStatus) error
}

// UsageEvent is one stored oracle call.
type UsageEvent struct {
	entity.UsageRecord
	CreatedAt time.Time
}

// UsageRepository defines persistence operations for token usage
type UsageRepository interface {
	Insert(ctx context.Context, rec entity.UsageRecord, at time.Time) error
	ListAll(ctx context.Context) ([]UsageEvent, error)
	SumByBatch(ctx context.Context, batchID string) (entity.UsageBucket, error)
	DeleteAll(ctx context.Context) error
}

// ModelHistoryRepository defines persistence operations for the per-provider
// model history
type ModelHistoryRepository interface {
	// List returns models most recent first.
	List(ctx context.Context, provider string) ([]string, error)

	// Touch records model as the most recent entry and trims the history to
	// keep entries.
	Touch(ctx context.Context, provider, model string, keep int) error

	Remove(ctx context.Context, provider, model string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
