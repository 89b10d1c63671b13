package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/pkg/workerpool"
)

var errNotDiningApplication = errors.New("未识别为业务招待费申请单")

// ProcessingService turns uploaded documents into audited records
type ProcessingService interface {
	// ProcessItem runs one claimed item through rendering, the oracle and the
	// audit rules, then stores the outcome. A failed extraction is stored on
	// the item with status error; only storage failures are returned.
	ProcessItem(ctx context.Context, item *entity.BatchItem, apiKey string) error

	// ProcessBatch claims every pending item of the batch and processes them
	// with at most concurrency workers. It returns the number of items claimed.
	ProcessBatch(ctx context.Context, batchID, apiKey string, concurrency int) (int, error)
}

// ProcessingConfig tunes item processing
type ProcessingConfig struct {
	TaskTimeout time.Duration
	ClaimLimit  int
}

type processingServiceImpl struct {
	batchRepo port.BatchRepository
	itemRepo  port.BatchItemRepository
	storage   port.FileStorage
	renderer  port.DocumentRenderer
	oracle    port.Oracle
	providers port.ProviderDirectory
	models    ModelService
	parser    *invoice.Parser
	engine    *audit.Engine
	cfg       ProcessingConfig
	logger    Logger
}

// NewProcessingService creates a new ProcessingService
func NewProcessingService(
	batchRepo port.BatchRepository,
	itemRepo port.BatchItemRepository,
	storage port.FileStorage,
	renderer port.DocumentRenderer,
	oracle port.Oracle,
	providers port.ProviderDirectory,
	models ModelService,
	parser *invoice.Parser,
	engine *audit.Engine,
	cfg ProcessingConfig,
	logger Logger,
) ProcessingService {
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = 100
	}
	return &processingServiceImpl{
		batchRepo: batchRepo,
		itemRepo:  itemRepo,
		storage:   storage,
		renderer:  renderer,
		oracle:    oracle,
		providers: providers,
		models:    models,
		parser:    parser,
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessBatch claims and processes the pending items of one batch
func (s *processingServiceImpl) ProcessBatch(ctx context.Context, batchID, apiKey string, concurrency int) (int, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return 0, fmt.Errorf("get batch: %w", err)
	}

	items, err := s.itemRepo.ClaimPending(ctx, batchID, s.cfg.ClaimLimit)
	if err != nil {
		return 0, fmt.Errorf("claim items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	s.logger.Info("Processing batch", "batch_id", batchID, "items", len(items), "concurrency", concurrency)

	workerpool.RunConcurrent(ctx, items, concurrency, func(ctx context.Context, item *entity.BatchItem) {
		if err := s.ProcessItem(ctx, item, apiKey); err != nil {
			s.logger.Error("Failed to store item outcome", "error", err, "item_id", item.ID)
		}
	})
	return len(items), nil
}

// ProcessItem processes one item and stores its outcome
func (s *processingServiceImpl) ProcessItem(ctx context.Context, item *entity.BatchItem, apiKey string) error {
	batch, err := s.batchRepo.GetByID(ctx, item.BatchID)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}

	if item.Model == "" && s.providers != nil {
		item.Model = s.providers.DefaultModel(item.Provider)
	}

	taskCtx := ctx
	if s.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()
	}

	started := time.Now()
	if err := s.process(taskCtx, batch, item, apiKey); err != nil {
		item.Status = entity.ItemStatusError
		item.Error = err.Error()
		s.logger.Warn("Item processing failed",
			"item_id", item.ID,
			"batch_id", item.BatchID,
			"provider", item.Provider,
			"error", err,
		)
	} else {
		item.Status = entity.ItemStatusSuccess
		item.Error = ""
		if batch.Mode == entity.BatchModeTravel {
			s.normalizeTicketYear(batch, item)
		}
		s.logger.Info("Item processed",
			"item_id", item.ID,
			"batch_id", item.BatchID,
			"kind", item.Kind,
			"duration", time.Since(started),
		)
	}

	if err := s.itemRepo.SaveResult(ctx, item); err != nil {
		return fmt.Errorf("save item result: %w", err)
	}

	if item.Status == entity.ItemStatusSuccess && s.models != nil && item.Model != "" {
		if _, err := s.models.Add(ctx, item.Provider, item.Model); err != nil {
			s.logger.Warn("Failed to record model history", "provider", item.Provider, "model", item.Model, "error", err)
		}
	}
	return nil
}

func (s *processingServiceImpl) process(ctx context.Context, batch *entity.Batch, item *entity.BatchItem, apiKey string) error {
	data, err := s.storage.Read(ctx, item.StorageKey)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	pages, err := s.renderer.Render(data, item.MimeType)
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	if len(pages) == 0 {
		return entity.ErrUnsupportedDocument
	}

	req := port.OracleRequest{
		Provider: item.Provider,
		Model:    item.Model,
		APIKey:   apiKey,
		FileName: item.FileName,
		Image:    pages[0].Data,
		MimeType: pages[0].MimeType,
		BatchID:  item.BatchID,
	}

	if item.Kind == entity.ItemKindInvoice {
		return s.extractInvoice(ctx, item, req)
	}
	if batch.Mode == entity.BatchModeTravel {
		return s.processTravel(ctx, batch, item, req)
	}
	return s.processAudit(ctx, item, req)
}

// processAudit asks the dining-application prompt first and falls back to
// invoice extraction for auto items.
func (s *processingServiceImpl) processAudit(ctx context.Context, item *entity.BatchItem, req port.OracleRequest) error {
	text, err := s.oracle.ExtractDiningApplication(ctx, req)
	if err != nil {
		return err
	}

	app, parseErr := s.parser.ParseDiningApplicationOutput(text)
	if parseErr == nil && app.IsDiningApplication {
		item.Kind = entity.ItemKindDiningApplication
		item.Application = app
		item.Result = nil
		return nil
	}

	if item.Kind == entity.ItemKindDiningApplication {
		if parseErr != nil {
			return parseErr
		}
		return errNotDiningApplication
	}
	if parseErr != nil {
		s.logger.Warn("Dining application probe unreadable, extracting as invoice", "item_id", item.ID, "error", parseErr)
	}
	return s.extractInvoice(ctx, item, req)
}

// processTravel classifies the document. Applications set the batch's trip
// window; reimbursable documents become audited records.
func (s *processingServiceImpl) processTravel(ctx context.Context, batch *entity.Batch, item *entity.BatchItem, req port.OracleRequest) error {
	text, err := s.oracle.Classify(ctx, req)
	if err != nil {
		return err
	}
	analysis, err := s.parser.ParseClassifierOutput(text)
	if err != nil {
		return err
	}
	item.Analysis = analysis

	if item.Kind == entity.ItemKindTravelApplication || analysis.FileType == entity.FileTypeApplication {
		item.Kind = entity.ItemKindTravelApplication
		item.Result = nil
		if app := analysis.Application; app != nil && app.StartDate != "" && app.EndDate != "" {
			if err := s.batchRepo.SetApplicationRange(ctx, batch.ID, app.StartDate, app.EndDate); err != nil {
				return fmt.Errorf("set application range: %w", err)
			}
			s.logger.Info("Application range found", "batch_id", batch.ID, "start", app.StartDate, "end", app.EndDate)
		}
		return nil
	}

	if analysis.FileType != entity.FileTypeInvoice && !analysis.IsReimbursable {
		return nil
	}
	if analysis.ExtractedData != nil {
		s.applyInvoice(item, *analysis.ExtractedData)
		return nil
	}
	return s.extractInvoice(ctx, item, req)
}

func (s *processingServiceImpl) extractInvoice(ctx context.Context, item *entity.BatchItem, req port.OracleRequest) error {
	text, err := s.oracle.ExtractInvoice(ctx, req)
	if err != nil {
		return err
	}
	s.applyInvoice(item, s.parser.ParseInvoiceOutput(text))
	return nil
}

func (s *processingServiceImpl) applyInvoice(item *entity.BatchItem, record entity.ExtractedInvoiceRecord) {
	result := s.engine.AuditInvoice(&record)
	item.Kind = entity.ItemKindInvoice
	item.Result = &result
	item.Application = nil
	item.YearConfirmed = false
	if record.IsRefundDetected && item.RefundStatus == "" {
		item.RefundStatus = entity.RefundPendingConfirmation
	}
}

// normalizeTicketYear writes the trip year into a ticket date once the batch
// knows its application window
func (s *processingServiceImpl) normalizeTicketYear(batch *entity.Batch, item *entity.BatchItem) {
	record := item.Record()
	if record == nil || batch.ApplicationStart == "" || batch.ApplicationEnd == "" {
		return
	}
	v := s.engine.ValidateTravelBatchItem(record, batch.ApplicationStart, batch.ApplicationEnd, item.YearConfirmed)
	if v.NormalizedDate == "" || v.NormalizedDate == record.InvoiceDate {
		return
	}
	s.logger.Info("Ticket year normalized",
		"item_id", item.ID,
		"from", record.InvoiceDate,
		"to", v.NormalizedDate,
	)
	record.InvoiceDate = v.NormalizedDate
}
