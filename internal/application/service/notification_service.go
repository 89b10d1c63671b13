package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// NotificationConfig selects where batch summaries go
type NotificationConfig struct {
	Enabled       bool
	ChatID        string
	AllowanceRate float64
}

// NotificationService sends batch summaries to a chat
type NotificationService interface {
	// NotifyBatch sends the summary of a batch regardless of its progress.
	NotifyBatch(ctx context.Context, batchID string) error

	// NotifyIfComplete sends the summary once no item is pending or
	// processing. It reports whether a message was sent.
	NotifyIfComplete(ctx context.Context, batchID string) (bool, error)
}

type notificationServiceImpl struct {
	batchRepo     port.BatchRepository
	itemRepo      port.BatchItemRepository
	messageSender port.MessageSender
	engine        *audit.Engine
	cfg           NotificationConfig
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	batchRepo port.BatchRepository,
	itemRepo port.BatchItemRepository,
	messageSender port.MessageSender,
	engine *audit.Engine,
	cfg NotificationConfig,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		batchRepo:     batchRepo,
		itemRepo:      itemRepo,
		messageSender: messageSender,
		engine:        engine,
		cfg:           cfg,
		logger:        logger,
	}
}

// NotifyBatch sends the batch summary
func (s *notificationServiceImpl) NotifyBatch(ctx context.Context, batchID string) error {
	if !s.enabled() {
		return fmt.Errorf("%w: notifications are disabled", entity.ErrInvalidInput)
	}

	batch, items, err := s.load(ctx, batchID)
	if err != nil {
		return err
	}
	return s.send(ctx, batch, items)
}

// NotifyIfComplete sends the batch summary when processing has finished
func (s *notificationServiceImpl) NotifyIfComplete(ctx context.Context, batchID string) (bool, error) {
	if !s.enabled() {
		return false, nil
	}

	batch, items, err := s.load(ctx, batchID)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	for _, item := range items {
		if item.Status == entity.ItemStatusPending || item.Status == entity.ItemStatusProcessing {
			return false, nil
		}
	}

	if err := s.send(ctx, batch, items); err != nil {
		return false, err
	}
	return true, nil
}

func (s *notificationServiceImpl) enabled() bool {
	return s.cfg.Enabled && s.cfg.ChatID != "" && s.messageSender != nil
}

func (s *notificationServiceImpl) load(ctx context.Context, batchID string) (*entity.Batch, []*entity.BatchItem, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, nil, fmt.Errorf("get batch: %w", err)
	}
	items, err := s.itemRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, nil, fmt.Errorf("list items: %w", err)
	}
	return batch, items, nil
}

func (s *notificationServiceImpl) send(ctx context.Context, batch *entity.Batch, items []*entity.BatchItem) error {
	message := s.buildSummary(batch, items)

	if err := s.messageSender.SendText(ctx, s.cfg.ChatID, message); err != nil {
		s.logger.Error("Failed to send batch summary", "error", err, "batch_id", batch.ID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Batch summary sent",
		"batch_id", batch.ID,
		"chat_id", s.cfg.ChatID,
		"message_length", len(message),
	)
	return nil
}

// buildSummary formats the batch statistics as plain text
func (s *notificationServiceImpl) buildSummary(batch *entity.Batch, items []*entity.BatchItem) string {
	s.engine.ApplyDiningPairing(items)
	stats := audit.BuildStats(items)

	var b strings.Builder
	title := batch.Label
	if title == "" {
		title = batch.ID
	}

	if batch.Mode == entity.BatchModeTravel {
		b.WriteString("差旅费批量报销处理完成\n\n")
	} else {
		b.WriteString("报销审核处理完成\n\n")
	}
	fmt.Fprintf(&b, "批次: %s\n", title)
	fmt.Fprintf(&b, "文件总数: %d\n", stats.Total)
	fmt.Fprintf(&b, "识别成功: %d\n", stats.Success)
	fmt.Fprintf(&b, "识别失败: %d\n", stats.ErrorCount)

	if batch.Mode == entity.BatchModeTravel {
		travelItems := make([]entity.TravelItem, 0, len(items))
		for _, item := range items {
			travelItems = append(travelItems, entity.TravelItem{
				Status:       item.Status,
				Result:       item.Record(),
				RefundStatus: item.RefundStatus,
			})
		}
		r := audit.CalculateTravelReport(travelItems, entity.TravelReportOptions{
			ManualStartDate:  batch.ApplicationStart,
			ManualEndDate:    batch.ApplicationEnd,
			AllowanceEnabled: s.cfg.AllowanceRate > 0,
			AllowanceRate:    s.cfg.AllowanceRate,
		})
		if r.StartDate != "" {
			fmt.Fprintf(&b, "出差日期: %s 至 %s (%d 天)\n", r.StartDate, r.EndDate, r.TotalDays)
		}
		fmt.Fprintf(&b, "报销合计: ¥%.2f (税额 ¥%.2f)\n", r.GrandTotalAmount, r.GrandTotalTax)
		if r.TotalAllowance > 0 {
			fmt.Fprintf(&b, "出差补助: ¥%.2f\n", r.TotalAllowance)
		}
		if r.NonStandardCount > 0 {
			fmt.Fprintf(&b, "非标准票据: %d 张 ¥%.2f\n", r.NonStandardCount, r.NonStandardAmount)
		}
	} else {
		fmt.Fprintf(&b, "餐饮发票: %d\n", stats.DiningCount)
		if notice := audit.BuildNonDiningNotice(items); notice != "" {
			b.WriteString("\n" + notice + "\n")
		}
	}

	if stats.IssueCount > 0 {
		fmt.Fprintf(&b, "\n⚠️ 需要关注: %d 项，请登录系统核对。", stats.IssueCount)
	} else {
		b.WriteString("\n✅ 未发现问题。")
	}
	return b.String()
}
