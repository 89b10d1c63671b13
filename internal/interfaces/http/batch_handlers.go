package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CreateBatchRequest opens a batch
type CreateBatchRequest struct {
	Mode  entity.BatchMode `json:"mode"`
	Label string           `json:"label"`
}

// ListBatchesQuery represents query parameters for listing batches
type ListBatchesQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// AuditViewQuery selects the page of an audit batch
type AuditViewQuery struct {
	Filter      entity.AuditFilter `form:"filter"`
	IssuesFirst bool               `form:"issuesFirst"`
	Page        int                `form:"page"`
	PageSize    int                `form:"pageSize"`
}

// TravelReportQuery carries the reviewer's report settings
type TravelReportQuery struct {
	ManualStartDate  string  `form:"manualStartDate"`
	ManualEndDate    string  `form:"manualEndDate"`
	AllowanceEnabled bool    `form:"allowance"`
	AllowanceRate    float64 `form:"allowanceRate"`
}

func (q TravelReportQuery) options() entity.TravelReportOptions {
	return entity.TravelReportOptions{
		ManualStartDate:  q.ManualStartDate,
		ManualEndDate:    q.ManualEndDate,
		AllowanceEnabled: q.AllowanceEnabled,
		AllowanceRate:    q.AllowanceRate,
	}
}

// UploadFailure reports a file that was rejected
type UploadFailure struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// UploadResponse lists the queued items and the rejected files
type UploadResponse struct {
	Items    []*entity.BatchItem `json:"items"`
	Failures []UploadFailure     `json:"failures,omitempty"`
}

// ProcessRequest controls a processing run
type ProcessRequest struct {
	Retry bool `json:"retry"`
}

// ProcessResponse reports a processing run
type ProcessResponse struct {
	Requeued  int `json:"requeued"`
	Processed int `json:"processed"`
}

// ApplicationRangeRequest sets the trip window of a travel batch
type ApplicationRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// RefundRequest records the reviewer's refund decision
type RefundRequest struct {
	Status entity.RefundStatus `json:"status"`
}

// ResolveDateRequest picks the date of an ambiguous ticket
type ResolveDateRequest struct {
	Date string `json:"date"`
}

// ListBatches handles GET /api/batches
func (h *Handlers) ListBatches(c *gin.Context) {
	var query ListBatchesQuery
	if !h.bindQuery(c, &query) {
		return
	}

	batches, err := h.services.Batches.List(c.Request.Context(), query.Limit, query.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if batches == nil {
		batches = []*entity.Batch{}
	}
	respondOK(c, batches)
}

// CreateBatch handles POST /api/batches
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.services.Batches.Create(c.Request.Context(), req.Mode, req.Label)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondCreated(c, batch)
}

// GetBatch handles GET /api/batches/:id. Audit batches return the filtered
// page, travel batches the validated items with their report.
func (h *Handlers) GetBatch(c *gin.Context) {
	ctx := c.Request.Context()
	batchID := c.Param("id")

	batch, err := h.services.Batches.Get(ctx, batchID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if batch.Mode == entity.BatchModeTravel {
		var query TravelReportQuery
		if !h.bindQuery(c, &query) {
			return
		}
		view, err := h.services.Batches.TravelView(ctx, batchID, query.options())
		if err != nil {
			h.respondError(c, err)
			return
		}
		respondOK(c, view)
		return
	}

	var query AuditViewQuery
	if !h.bindQuery(c, &query) {
		return
	}
	view, err := h.services.Batches.AuditView(ctx, batchID, service.AuditQuery{
		Filter:      query.Filter,
		IssuesFirst: query.IssuesFirst,
		Page:        query.Page,
		PageSize:    query.PageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, view)
}

// UploadDocuments handles POST /api/batches/:id/documents. Files come in the
// "files" (or "file") multipart field; kind, provider and model apply to all.
func (h *Handlers) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.respondError(c, badRequest("multipart form expected"))
		return
	}

	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		h.respondError(c, badRequest("no files uploaded"))
		return
	}

	kind := entity.ItemKind(c.PostForm("kind"))
	provider := c.PostForm("provider")
	model := c.PostForm("model")

	ctx := c.Request.Context()
	batchID := c.Param("id")
	resp := UploadResponse{Items: make([]*entity.BatchItem, 0, len(headers))}
	var firstErr error

	for _, fh := range headers {
		item, err := h.addUpload(ctx, batchID, fh, kind, provider, model)
		if err == nil {
			resp.Items = append(resp.Items, item)
			continue
		}
		if errors.Is(err, entity.ErrNotFound) {
			h.respondError(c, err)
			return
		}
		if firstErr == nil {
			firstErr = err
		}
		resp.Failures = append(resp.Failures, UploadFailure{FileName: fh.Filename, Error: toAppError(err).Details})
	}

	if len(resp.Items) == 0 {
		h.respondError(c, firstErr)
		return
	}

	if h.services.Trigger != nil {
		h.services.Trigger.Trigger()
	}
	respondCreated(c, resp)
}

func (h *Handlers) addUpload(ctx context.Context, batchID string, fh *multipart.FileHeader, kind entity.ItemKind, provider, model string) (*entity.BatchItem, error) {
	if h.config.MaxUploadBytes > 0 && fh.Size > h.config.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", entity.ErrInvalidInput, fh.Filename, h.config.MaxUploadBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s", entity.ErrInvalidInput, fh.Filename)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}

	return h.services.Batches.AddDocument(ctx, batchID, service.DocumentUpload{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Content:  content,
		Kind:     kind,
		Provider: provider,
		Model:    model,
	})
}

// ProcessBatch handles POST /api/batches/:id/process. It runs the pending
// items now, with the caller's X-API-Key when given, and returns when they
// are done.
func (h *Handlers) ProcessBatch(c *gin.Context) {
	var req ProcessRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}

	batchID := c.Param("id")
	// Claimed items must be finished even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())

	var resp ProcessResponse
	if req.Retry {
		n, err := h.services.Batches.Requeue(ctx, batchID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp.Requeued = n
	}

	n, err := h.services.Processing.ProcessBatch(ctx, batchID, c.GetHeader("X-API-Key"), h.config.Concurrency)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp.Processed = n

	if n > 0 && h.services.Notification != nil {
		if _, err := h.services.Notification.NotifyIfComplete(ctx, batchID); err != nil {
			h.logger.Error("Failed to send batch summary", "batch_id", batchID, "error", err)
		}
	}
	respondOK(c, resp)
}

// SetApplicationRange handles PUT /api/batches/:id/application
func (h *Handlers) SetApplicationRange(c *gin.Context) {
	var req ApplicationRangeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	batch, err := h.services.Batches.SetApplicationRange(c.Request.Context(), c.Param("id"), req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, batch)
}

// ConfirmRefund handles PUT /api/batches/:id/items/:itemId/refund
func (h *Handlers) ConfirmRefund(c *gin.Context) {
	var req RefundRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.services.Batches.ConfirmRefund(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, item)
}

// ResolveYear handles PUT /api/batches/:id/items/:itemId/date
func (h *Handlers) ResolveYear(c *gin.Context) {
	var req ResolveDateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	item, err := h.services.Batches.ResolveYear(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.Date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, item)
}

// GetTravelReport handles GET /api/batches/:id/report
func (h *Handlers) GetTravelReport(c *gin.Context) {
	query, ok := h.travelQuery(c)
	if !ok {
		return
	}

	view, err := h.services.Batches.TravelView(c.Request.Context(), c.Param("id"), query.options())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, view.Report)
}

// ExportTravelReport handles GET /api/batches/:id/report.xlsx
func (h *Handlers) ExportTravelReport(c *gin.Context) {
	query, ok := h.travelQuery(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	batchID := c.Param("id")
	if err := h.services.Batches.ExportTravelReport(c.Request.Context(), batchID, query.options(), &buf); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="travel-report-%s.xlsx"`, batchID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// travelQuery binds the report settings after checking the batch is a
// travel batch
func (h *Handlers) travelQuery(c *gin.Context) (TravelReportQuery, bool) {
	var query TravelReportQuery

	batch, err := h.services.Batches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return query, false
	}
	if batch.Mode != entity.BatchModeTravel {
		h.respondError(c, badRequest("report is only available for travel batches"))
		return query, false
	}
	if !h.bindQuery(c, &query) {
		return query, false
	}
	return query, true
}

// NotifyBatch handles POST /api/batches/:id/notify
func (h *Handlers) NotifyBatch(c *gin.Context) {
	if h.services.Notification == nil {
		h.respondError(c, badRequest("notifications are not configured"))
		return
	}
	if err := h.services.Notification.NotifyBatch(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, gin.H{"sent": true})
}
