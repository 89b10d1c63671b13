package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/migrations"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "audit.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).RunMigrations(migrations.FS)
	require.NoError(t, err)
	return db
}

func seedBatch(t *testing.T, repo *BatchRepository, id string, mode entity.BatchMode) *entity.Batch {
	t.Helper()
	batch := &entity.Batch{ID: id, Mode: mode, Label: "六月差旅"}
	require.NoError(t, repo.Create(context.Background(), batch))
	return batch
}

func newItem(id, batchID string, createdAt time.Time) *entity.BatchItem {
	return &entity.BatchItem{
		ID:         id,
		BatchID:    batchID,
		FileName:   id + ".pdf",
		StorageKey: batchID + "/" + id + ".pdf",
		MimeType:   "application/pdf",
		Kind:       entity.ItemKindAuto,
		Provider:   "siliconflow",
		CreatedAt:  createdAt,
	}
}

func TestBatchRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewBatchRepository(db.DB, zap.NewNop()).(*BatchRepository)
	ctx := context.Background()

	created := seedBatch(t, repo, "b-1", entity.BatchModeTravel)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, entity.BatchModeTravel, got.Mode)
	assert.Equal(t, "六月差旅", got.Label)
	assert.Empty(t, got.ApplicationStart)

	require.NoError(t, repo.SetApplicationRange(ctx, "b-1", "2025-06-01", "2025-06-05"))
	got, err = repo.GetByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", got.ApplicationStart)
	assert.Equal(t, "2025-06-05", got.ApplicationEnd)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.ErrorIs(t, repo.SetApplicationRange(ctx, "missing", "", ""), entity.ErrNotFound)

	older := &entity.Batch{ID: "b-0", Mode: entity.BatchModeAudit, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, repo.Create(ctx, older))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-1", list[0].ID)
	assert.Equal(t, "b-0", list[1].ID)
}

func TestBatchItemRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	batches := NewBatchRepository(db.DB, zap.NewNop()).(*BatchRepository)
	repo := NewBatchItemRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	seedBatch(t, batches, "b-1", entity.BatchModeAudit)

	item := newItem("i-1", "b-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, item))
	assert.Equal(t, entity.ItemStatusPending, item.Status)

	item.Status = entity.ItemStatusSuccess
	item.Kind = entity.ItemKindInvoice
	item.Model = "Qwen/Qwen3-VL-32B-Instruct"
	item.Result = &entity.ProcessedResult{
		Data: entity.ExtractedInvoiceRecord{
			InvoiceType: entity.InvoiceTypeGeneral,
			TotalAmount: 320,
			InvoiceDate: "2025-03-10",
			Items:       []string{"餐饮服务"},
		},
		Category: entity.CategoryDining,
		Audit:    entity.AuditResult{GeneralStatus: entity.StatusWarning},
	}
	item.RefundStatus = entity.RefundPendingConfirmation
	item.YearConfirmed = true
	require.NoError(t, repo.SaveResult(ctx, item))

	got, err := repo.GetByID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ItemStatusSuccess, got.Status)
	assert.Equal(t, entity.ItemKindInvoice, got.Kind)
	require.NotNil(t, got.Result)
	assert.Equal(t, 320.0, got.Result.Data.TotalAmount)
	assert.Equal(t, entity.CategoryDining, got.Result.Category)
	assert.Nil(t, got.Application)
	assert.Nil(t, got.Analysis)
	assert.Equal(t, entity.RefundPendingConfirmation, got.RefundStatus)
	assert.True(t, got.YearConfirmed)

	require.NoError(t, repo.UpdateRefundStatus(ctx, "i-1", entity.RefundConfirmed))
	got, err = repo.GetByID(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RefundConfirmed, got.RefundStatus)

	assert.ErrorIs(t, repo.UpdateRefundStatus(ctx, "nope", entity.RefundConfirmed), entity.ErrNotFound)
	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestBatchItemRepository_Claiming(t *testing.T) {
	db := openTestDB(t)
	batches := NewBatchRepository(db.DB, zap.NewNop()).(*BatchRepository)
	repo := NewBatchItemRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	seedBatch(t, batches, "b-1", entity.BatchModeAudit)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"i-1", "i-2", "i-3"} {
		require.NoError(t, repo.Create(ctx, newItem(id, "b-1", base.Add(time.Duration(i)*time.Minute))))
	}

	seedBatch(t, batches, "b-2", entity.BatchModeTravel)
	require.NoError(t, repo.Create(ctx, newItem("j-1", "b-2", base.Add(-time.Hour))))

	claimed, err := repo.ClaimPending(ctx, "b-1", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "i-1", claimed[0].ID)
	assert.Equal(t, "i-2", claimed[1].ID)
	assert.Equal(t, entity.ItemStatusProcessing, claimed[0].Status)

	claimed, err = repo.ClaimPending(ctx, "", 5)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "j-1", claimed[0].ID)
	assert.Equal(t, "i-3", claimed[1].ID)

	claimed, err = repo.ClaimPending(ctx, "", 5)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	failed, err := repo.GetByID(ctx, "i-2")
	require.NoError(t, err)
	failed.Status = entity.ItemStatusError
	failed.Error = "extraction oracle unavailable"
	require.NoError(t, repo.SaveResult(ctx, failed))

	n, err := repo.Requeue(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	requeued, err := repo.GetByID(ctx, "i-2")
	require.NoError(t, err)
	assert.Equal(t, entity.ItemStatusPending, requeued.Status)
	assert.Empty(t, requeued.Error)

	n, err = repo.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	items, err := repo.ListByBatch(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, entity.ItemStatusPending, it.Status, it.ID)
	}
}

func TestUsageRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewUsageRepository(db.DB, zap.NewNop())
	ctx := context.Background()
	at := time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, entity.UsageRecord{Provider: "zhipu", Model: "glm-4v", PromptTokens: 100, CompletionTokens: 20, BatchID: "b-1"}, at))
	require.NoError(t, repo.Insert(ctx, entity.UsageRecord{Provider: "zhipu", Model: "glm-4v", PromptTokens: 50, CompletionTokens: 5, BatchID: "b-1"}, at))
	require.NoError(t, repo.Insert(ctx, entity.UsageRecord{Provider: "kimi", Model: "moonshot-v1-8k", PromptTokens: 7}, at))

	sum, err := repo.SumByBatch(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, entity.UsageBucket{Prompt: 150, Completion: 25, Total: 175}, sum)

	empty, err := repo.SumByBatch(ctx, "b-2")
	require.NoError(t, err)
	assert.Equal(t, entity.UsageBucket{}, empty)

	events, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "kimi", events[2].Provider)
	assert.True(t, events[0].CreatedAt.Equal(at))

	require.NoError(t, repo.DeleteAll(ctx))
	events, err = repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestModelHistoryRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewModelHistoryRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	for _, m := range []string{"a", "b", "c", "a"} {
		require.NoError(t, repo.Touch(ctx, "zhipu", m, 3))
	}
	require.NoError(t, repo.Touch(ctx, "kimi", "k1", 3))

	models, err := repo.List(ctx, "zhipu")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, models)

	require.NoError(t, repo.Touch(ctx, "zhipu", "d", 3))
	models, err = repo.List(ctx, "zhipu")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "c"}, models)

	require.NoError(t, repo.Remove(ctx, "zhipu", "a"))
	models, err = repo.List(ctx, "zhipu")
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, models)

	kimi, err := repo.List(ctx, "kimi")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, kimi)

	none, err := repo.List(ctx, "dashscope")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionRollback(t *testing.T) {
	db := openTestDB(t)
	tx := sqlite.NewDB(db.DB, zap.NewNop())
	repo := NewBatchRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, &entity.Batch{ID: "b-tx", Mode: entity.BatchModeAudit}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.GetByID(ctx, "b-tx")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
