package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func newNotificationFixture(cfg NotificationConfig, mode entity.BatchMode, items ...*entity.BatchItem) (NotificationService, *mockMessageSender) {
	sender := &mockMessageSender{}
	svc := NewNotificationService(
		newMemBatchRepo(&entity.Batch{ID: "b-1", Mode: mode, Label: "三月报销"}),
		newMemItemRepo(items...),
		sender,
		audit.NewDefaultEngine(),
		cfg,
		&mockLogger{},
	)
	return svc, sender
}

var enabledNotifications = NotificationConfig{Enabled: true, ChatID: "oc_123", AllowanceRate: 100}

func TestNotificationService_NotifyIfComplete(t *testing.T) {
	tests := []struct {
		name     string
		cfg      NotificationConfig
		items    []*entity.BatchItem
		wantSent bool
	}{
		{
			name:     "all done",
			cfg:      enabledNotifications,
			items:    []*entity.BatchItem{{ID: "i-1", BatchID: "b-1", Status: entity.ItemStatusSuccess}, {ID: "i-2", BatchID: "b-1", Status: entity.ItemStatusError}},
			wantSent: true,
		},
		{
			name:  "still processing",
			cfg:   enabledNotifications,
			items: []*entity.BatchItem{{ID: "i-1", BatchID: "b-1", Status: entity.ItemStatusSuccess}, {ID: "i-2", BatchID: "b-1", Status: entity.ItemStatusProcessing}},
		},
		{
			name: "empty batch",
			cfg:  enabledNotifications,
		},
		{
			name:  "disabled",
			cfg:   NotificationConfig{ChatID: "oc_123"},
			items: []*entity.BatchItem{{ID: "i-1", BatchID: "b-1", Status: entity.ItemStatusSuccess}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sender := newNotificationFixture(tt.cfg, entity.BatchModeAudit, tt.items...)

			sent, err := svc.NotifyIfComplete(context.Background(), "b-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, sent)
			if tt.wantSent {
				require.Len(t, sender.sent, 1)
			} else {
				assert.Empty(t, sender.sent)
			}
		})
	}
}

func TestNotificationService_AuditSummary(t *testing.T) {
	svc, sender := newNotificationFixture(enabledNotifications, entity.BatchModeAudit,
		successItem("i-1", "b-1", entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeDining, TotalAmount: 320}),
		&entity.BatchItem{ID: "i-2", BatchID: "b-1", Status: entity.ItemStatusError},
	)

	require.NoError(t, svc.NotifyBatch(context.Background(), "b-1"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Contains(t, msg, "报销审核处理完成")
	assert.Contains(t, msg, "批次: 三月报销")
	assert.Contains(t, msg, "文件总数: 2")
	assert.Contains(t, msg, "识别失败: 1")
	assert.Contains(t, msg, "餐饮发票: 1")
	assert.Contains(t, msg, "需要关注: 1 项")
}

func TestNotificationService_TravelSummary(t *testing.T) {
	svc, sender := newNotificationFixture(enabledNotifications, entity.BatchModeTravel,
		successItem("t-1", "b-1", entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeTrain, DocumentType: entity.DocumentTypeTrainTicket, TotalAmount: 553.5, InvoiceDate: "2025-03-01"}),
		successItem("t-2", "b-1", entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeTrain, DocumentType: entity.DocumentTypeTrainTicket, TotalAmount: 553.5, InvoiceDate: "2025-03-03"}),
	)

	require.NoError(t, svc.NotifyBatch(context.Background(), "b-1"))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Contains(t, msg, "差旅费批量报销处理完成")
	assert.Contains(t, msg, "出差日期: 2025-03-01 至 2025-03-03 (3 天)")
	assert.Contains(t, msg, "报销合计: ¥1407.00")
	assert.Contains(t, msg, "出差补助: ¥300.00")
	assert.Contains(t, msg, "未发现问题")
}

func TestNotificationService_Errors(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		svc, _ := newNotificationFixture(NotificationConfig{}, entity.BatchModeAudit)
		err := svc.NotifyBatch(context.Background(), "b-1")
		assert.ErrorIs(t, err, entity.ErrInvalidInput)
	})

	t.Run("unknown batch", func(t *testing.T) {
		svc, _ := newNotificationFixture(enabledNotifications, entity.BatchModeAudit)
		err := svc.NotifyBatch(context.Background(), "missing")
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("send failure", func(t *testing.T) {
		svc, sender := newNotificationFixture(enabledNotifications, entity.BatchModeAudit,
			&entity.BatchItem{ID: "i-1", BatchID: "b-1", Status: entity.ItemStatusSuccess})
		sender.sendTextFunc = func(ctx context.Context, chatID, text string) error {
			assert.Equal(t, "oc_123", chatID)
			return errors.New("lark down")
		}

		sent, err := svc.NotifyIfComplete(context.Background(), "b-1")
		assert.Error(t, err)
		assert.False(t, sent)
	})
}
