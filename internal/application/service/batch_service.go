package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/internal/report"
	"github.com/garyjia/expense-audit/pkg/utils"
)

// DocumentUpload is one file added to a batch
type DocumentUpload struct {
	FileName string
	MimeType string
	Content  []byte
	Kind     entity.ItemKind
	Provider string
	Model    string
}

// AuditQuery selects the page of an audit batch to show
type AuditQuery struct {
	Filter      entity.AuditFilter
	IssuesFirst bool
	Page        int
	PageSize    int
}

// AuditView is the reviewer's view of an audit batch
type AuditView struct {
	Batch      *entity.Batch       `json:"batch"`
	Items      []*entity.BatchItem `json:"items"`
	Filtered   int                 `json:"filtered"`
	Stats      entity.AuditStats   `json:"stats"`
	Notice     string              `json:"notice,omitempty"`
	NoticeOnly bool                `json:"notice_only"`
}

// TravelViewItem is one travel item with its validation and suggested name
type TravelViewItem struct {
	Item          *entity.BatchItem       `json:"item"`
	Validation    *entity.BatchValidation `json:"validation,omitempty"`
	SuggestedName string                  `json:"suggested_name,omitempty"`
}

// TravelView is the reviewer's view of a travel batch
type TravelView struct {
	Batch  *entity.Batch       `json:"batch"`
	Items  []TravelViewItem    `json:"items"`
	Report entity.TravelReport `json:"report"`
	Stats  entity.AuditStats   `json:"stats"`
}

// BatchConfig holds batch defaults. DefaultProvider applies to uploads that
// name no provider.
type BatchConfig struct {
	DefaultAllowanceRate float64
	DefaultPageSize      int
	MaxDocumentBytes     int64
	DefaultProvider      string
}

// BatchService manages batches, their documents and review views
type BatchService interface {
	Create(ctx context.Context, mode entity.BatchMode, label string) (*entity.Batch, error)
	Get(ctx context.Context, id string) (*entity.Batch, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Batch, error)
	AddDocument(ctx context.Context, batchID string, doc DocumentUpload) (*entity.BatchItem, error)
	Items(ctx context.Context, batchID string) ([]*entity.BatchItem, error)
	SetApplicationRange(ctx context.Context, batchID, start, end string) (*entity.Batch, error)
	ConfirmRefund(ctx context.Context, batchID, itemID string, status entity.RefundStatus) (*entity.BatchItem, error)
	ResolveYear(ctx context.Context, batchID, itemID, date string) (*entity.BatchItem, error)
	Requeue(ctx context.Context, batchID string) (int, error)
	AuditView(ctx context.Context, batchID string, q AuditQuery) (*AuditView, error)
	TravelView(ctx context.Context, batchID string, opts entity.TravelReportOptions) (*TravelView, error)
	ExportTravelReport(ctx context.Context, batchID string, opts entity.TravelReportOptions, w io.Writer) error
}

type batchServiceImpl struct {
	batchRepo port.BatchRepository
	itemRepo  port.BatchItemRepository
	txManager port.TransactionManager
	storage   port.FileStorage
	providers port.ProviderDirectory
	usage     UsageService
	writer    port.ReportWriter
	engine    *audit.Engine
	cfg       BatchConfig
	logger    Logger
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo port.BatchRepository,
	itemRepo port.BatchItemRepository,
	txManager port.TransactionManager,
	storage port.FileStorage,
	providers port.ProviderDirectory,
	usage UsageService,
	writer port.ReportWriter,
	engine *audit.Engine,
	cfg BatchConfig,
	logger Logger,
) BatchService {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	return &batchServiceImpl{
		batchRepo: batchRepo,
		itemRepo:  itemRepo,
		txManager: txManager,
		storage:   storage,
		providers: providers,
		usage:     usage,
		writer:    writer,
		engine:    engine,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create opens a new batch
func (s *batchServiceImpl) Create(ctx context.Context, mode entity.BatchMode, label string) (*entity.Batch, error) {
	if mode != entity.BatchModeAudit && mode != entity.BatchModeTravel {
		return nil, fmt.Errorf("%w: unknown batch mode %q", entity.ErrInvalidInput, mode)
	}

	batch := &entity.Batch{
		ID:    uuid.NewString(),
		Mode:  mode,
		Label: utils.SanitizeString(strings.TrimSpace(label)),
	}
	if err := s.batchRepo.Create(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	s.logger.Info("Batch created", "batch_id", batch.ID, "mode", mode)
	return batch, nil
}

// Get returns a batch with its token usage
func (s *batchServiceImpl) Get(ctx context.Context, id string) (*entity.Batch, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.usage != nil {
		usage, err := s.usage.BatchUsage(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to load batch usage", "batch_id", id, "error", err)
		} else {
			batch.Usage = usage
		}
	}
	return batch, nil
}

// List returns batches, newest first
func (s *batchServiceImpl) List(ctx context.Context, limit, offset int) ([]*entity.Batch, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	return s.batchRepo.List(ctx, limit, max(offset, 0))
}

// Items returns the batch's items in upload order
func (s *batchServiceImpl) Items(ctx context.Context, batchID string) ([]*entity.BatchItem, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.itemRepo.ListByBatch(ctx, batchID)
}

// AddDocument stores an uploaded file and queues it for processing
func (s *batchServiceImpl) AddDocument(ctx context.Context, batchID string, doc DocumentUpload) (*entity.BatchItem, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.checkUpload(batch, &doc); err != nil {
		return nil, err
	}

	itemID := uuid.NewString()
	item := &entity.BatchItem{
		ID:         itemID,
		BatchID:    batchID,
		FileName:   doc.FileName,
		StorageKey: documentKey(batchID, itemID, doc.FileName),
		MimeType:   doc.MimeType,
		Kind:       doc.Kind,
		Provider:   doc.Provider,
		Model:      doc.Model,
		Status:     entity.ItemStatusPending,
	}

	if err := s.storage.Save(ctx, item.StorageKey, doc.Content); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		if delErr := s.storage.Delete(ctx, item.StorageKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned document", "key", item.StorageKey, "error", delErr)
		}
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.logger.Info("Document queued",
		"batch_id", batchID,
		"item_id", item.ID,
		"kind", item.Kind,
		"provider", item.Provider,
		"size", len(doc.Content),
	)
	return item, nil
}

func (s *batchServiceImpl) checkUpload(batch *entity.Batch, doc *DocumentUpload) error {
	doc.FileName = utils.SanitizeString(strings.TrimSpace(doc.FileName))
	if doc.FileName == "" {
		return fmt.Errorf("%w: file name is required", entity.ErrInvalidInput)
	}
	if len(doc.Content) == 0 {
		return fmt.Errorf("%w: empty document", entity.ErrInvalidInput)
	}
	if s.cfg.MaxDocumentBytes > 0 && int64(len(doc.Content)) > s.cfg.MaxDocumentBytes {
		return fmt.Errorf("%w: document exceeds %d bytes", entity.ErrInvalidInput, s.cfg.MaxDocumentBytes)
	}

	if doc.Provider == "" {
		doc.Provider = s.cfg.DefaultProvider
	}
	if !s.providers.IsValid(doc.Provider) {
		return fmt.Errorf("%w: %s", entity.ErrInvalidProvider, doc.Provider)
	}
	doc.Model = strings.TrimSpace(doc.Model)

	if doc.Kind == "" {
		doc.Kind = entity.ItemKindAuto
	}
	if !doc.Kind.IsValid() {
		return fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, doc.Kind)
	}
	switch {
	case batch.Mode == entity.BatchModeAudit && doc.Kind == entity.ItemKindTravelApplication,
		batch.Mode == entity.BatchModeTravel && doc.Kind == entity.ItemKindDiningApplication:
		return fmt.Errorf("%w: kind %s not allowed in %s batches", entity.ErrInvalidInput, doc.Kind, batch.Mode)
	}

	mime := invoice.NormalizeMimeType(doc.MimeType)
	switch mime {
	case invoice.MimePDF, invoice.MimeJPEG, invoice.MimePNG:
	default:
		mime = invoice.MimeTypeFromName(doc.FileName)
	}
	if mime == "" {
		return fmt.Errorf("%w: %s", entity.ErrUnsupportedDocument, doc.FileName)
	}
	doc.MimeType = mime
	return nil
}

// documentKey places a document under its batch. The original name only
// contributes its extension.
func documentKey(batchID, itemID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return "batches/" + batchID + "/" + itemID + ext
}

// SetApplicationRange overrides the trip window of a travel batch
func (s *batchServiceImpl) SetApplicationRange(ctx context.Context, batchID, start, end string) (*entity.Batch, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start != "" || end != "" {
		if err := utils.ValidateDate(start); err != nil {
			return nil, fmt.Errorf("%w: start %v", entity.ErrInvalidInput, err)
		}
		if err := utils.ValidateDate(end); err != nil {
			return nil, fmt.Errorf("%w: end %v", entity.ErrInvalidInput, err)
		}
		if end < start {
			return nil, fmt.Errorf("%w: end before start", entity.ErrInvalidInput)
		}
	}

	if err := s.batchRepo.SetApplicationRange(ctx, batchID, start, end); err != nil {
		return nil, err
	}
	return s.Get(ctx, batchID)
}

// ConfirmRefund records the reviewer's decision on a detected refund
func (s *batchServiceImpl) ConfirmRefund(ctx context.Context, batchID, itemID string, status entity.RefundStatus) (*entity.BatchItem, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown refund status %q", entity.ErrInvalidInput, status)
	}
	item, err := s.batchItem(ctx, batchID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.itemRepo.UpdateRefundStatus(ctx, itemID, status); err != nil {
		return nil, err
	}
	item.RefundStatus = status

	s.logger.Info("Refund status updated", "item_id", itemID, "status", status)
	return item, nil
}

// ResolveYear rewrites the invoice date of an item after the reviewer picked
// the year of an ambiguous ticket
func (s *batchServiceImpl) ResolveYear(ctx context.Context, batchID, itemID, date string) (*entity.BatchItem, error) {
	date = strings.TrimSpace(date)
	if err := utils.ValidateDate(date); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	var item *entity.BatchItem
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		item, err = s.batchItem(txCtx, batchID, itemID)
		if err != nil {
			return err
		}
		if item.Result == nil {
			return fmt.Errorf("%w: item %s has no extracted record", entity.ErrInvalidInput, itemID)
		}
		item.Result.Data.InvoiceDate = date
		item.YearConfirmed = true
		return s.itemRepo.SaveResult(txCtx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice date resolved", "item_id", itemID, "date", date)
	return item, nil
}

// Requeue moves failed items back to pending
func (s *batchServiceImpl) Requeue(ctx context.Context, batchID string) (int, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return 0, err
	}
	n, err := s.itemRepo.Requeue(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("requeue items: %w", err)
	}
	if n > 0 {
		s.logger.Info("Failed items requeued", "batch_id", batchID, "count", n)
	}
	return n, nil
}

// AuditView pairs dining documents and returns the requested page
func (s *batchServiceImpl) AuditView(ctx context.Context, batchID string, q AuditQuery) (*AuditView, error) {
	batch, err := s.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	s.engine.ApplyDiningPairing(items)

	if q.Filter == "" {
		q.Filter = entity.FilterAll
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = s.cfg.DefaultPageSize
	}

	filtered := audit.FilterItems(items, q.Filter, q.IssuesFirst)
	notice := audit.BuildNonDiningNotice(items)
	return &AuditView{
		Batch:      batch,
		Items:      audit.Paginate(filtered, q.Page, q.PageSize),
		Filtered:   len(filtered),
		Stats:      audit.BuildStats(items),
		Notice:     notice,
		NoticeOnly: audit.NoticeOnly(items, notice),
	}, nil
}

// TravelView validates every travel item and aggregates the report. Ticket
// dates normalized to the trip year are used for the report and the names,
// and unset manual dates fall back to the batch's application window.
func (s *batchServiceImpl) TravelView(ctx context.Context, batchID string, opts entity.TravelReportOptions) (*TravelView, error) {
	batch, err := s.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	if opts.AllowanceRate <= 0 {
		opts.AllowanceRate = s.cfg.DefaultAllowanceRate
	}
	if opts.ManualStartDate == "" {
		opts.ManualStartDate = batch.ApplicationStart
	}
	if opts.ManualEndDate == "" {
		opts.ManualEndDate = batch.ApplicationEnd
	}

	view := &TravelView{
		Batch: batch,
		Items: make([]TravelViewItem, 0, len(items)),
		Stats: audit.BuildStats(items),
	}
	reportItems := make([]entity.TravelItem, 0, len(items))
	for _, item := range items {
		vi := TravelViewItem{Item: item}
		if record := item.Record(); record != nil && item.Status == entity.ItemStatusSuccess {
			v := s.engine.ValidateTravelBatchItem(record, batch.ApplicationStart, batch.ApplicationEnd, item.YearConfirmed)
			if v.NormalizedDate != "" && v.NormalizedDate != record.InvoiceDate {
				item = withInvoiceDate(item, v.NormalizedDate)
				record = item.Record()
				vi.Item = item
			}
			vi.Validation = &v
			vi.SuggestedName = report.WithExtension(report.SuggestedFileName(recordLabel(record), record), item.FileName)
		}
		view.Items = append(view.Items, vi)
		reportItems = append(reportItems, entity.TravelItem{
			Status:       item.Status,
			Result:       item.Record(),
			RefundStatus: item.RefundStatus,
		})
	}
	view.Report = audit.CalculateTravelReport(reportItems, opts)
	return view, nil
}

// ExportTravelReport writes the travel report workbook to w
func (s *batchServiceImpl) ExportTravelReport(ctx context.Context, batchID string, opts entity.TravelReportOptions, w io.Writer) error {
	view, err := s.TravelView(ctx, batchID, opts)
	if err != nil {
		return err
	}

	wb := report.TravelWorkbook{
		Title:  view.Batch.Label,
		Report: view.Report,
	}
	if wb.Title == "" {
		wb.Title = "差旅费报销 " + time.Now().Format("2006-01-02")
	}
	for _, vi := range view.Items {
		item := vi.Item
		rec := item.Record()
		if !audit.IsReportable(entity.TravelItem{Status: item.Status, Result: rec, RefundStatus: item.RefundStatus}) {
			continue
		}
		wb.Rows = append(wb.Rows, report.DetailRow{
			FileName:      item.FileName,
			SuggestedName: vi.SuggestedName,
			ExpenseType:   string(rec.ExpenseType),
			DocumentType:  audit.DocumentTypeName(rec.DocumentType),
			InvoiceDate:   rec.InvoiceDate,
			BuyerName:     rec.BuyerName,
			TotalAmount:   rec.TotalAmount,
			TaxAmount:     rec.TaxAmount,
			RefundStatus:  string(item.RefundStatus),
		})
	}

	if err := s.writer.WriteTravelReport(w, wb); err != nil {
		return fmt.Errorf("write travel report: %w", err)
	}
	return nil
}

// withInvoiceDate returns a copy of item whose record carries date. The
// stored item is left untouched.
func withInvoiceDate(item *entity.BatchItem, date string) *entity.BatchItem {
	out := *item
	result := *item.Result
	result.Data.InvoiceDate = date
	out.Result = &result
	return &out
}

func (s *batchServiceImpl) batchItem(ctx context.Context, batchID, itemID string) (*entity.BatchItem, error) {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.BatchID != batchID {
		return nil, fmt.Errorf("item %s in batch %s: %w", itemID, batchID, entity.ErrNotFound)
	}
	return item, nil
}

// recordLabel names a record by its expense type, falling back to the
// document type for uncategorized records.
func recordLabel(record *entity.ExtractedInvoiceRecord) string {
	if record.ExpenseType != "" && record.ExpenseType != entity.ExpenseTypeOther {
		return string(record.ExpenseType)
	}
	return audit.DocumentTypeName(record.DocumentType)
}
