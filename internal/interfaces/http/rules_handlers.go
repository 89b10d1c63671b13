package http

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/pkg/utils"
)

// DiningValidateRequest pairs an application with the invoice it covers
type DiningValidateRequest struct {
	Application entity.DiningApplicationRecord `json:"application"`
	Invoice     entity.ExtractedInvoiceRecord  `json:"invoice"`
}

// DiningValidateResponse lists the policy violations found
type DiningValidateResponse struct {
	Issues []string `json:"issues"`
}

// TravelValidateRequest checks one ticket against an application window
type TravelValidateRequest struct {
	Record           entity.ExtractedInvoiceRecord `json:"record"`
	ApplicationStart string                        `json:"application_start"`
	ApplicationEnd   string                        `json:"application_end"`
	YearConfirmed    bool                          `json:"year_confirmed"`
}

// TravelReportRequest aggregates ad-hoc travel items
type TravelReportRequest struct {
	Items   []entity.TravelItem        `json:"items"`
	Options entity.TravelReportOptions `json:"options"`
}

// Parse kinds accepted by ParseOutput
const (
	ParseKindInvoice           = "invoice"
	ParseKindClassifier        = "classifier"
	ParseKindDiningApplication = "dining_application"
	ParseKindOCR               = "ocr"
)

// ParseRequest carries raw oracle text or OCR lines
type ParseRequest struct {
	Kind  string   `json:"kind"`
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
}

// AuditRecord handles POST /api/rules/audit
func (h *Handlers) AuditRecord(c *gin.Context) {
	var record entity.ExtractedInvoiceRecord
	if !h.bindJSON(c, &record) {
		return
	}
	respondOK(c, h.services.Engine.AuditInvoice(&record))
}

// DiningPlan handles POST /api/rules/dining/plan
func (h *Handlers) DiningPlan(c *gin.Context) {
	var record entity.ExtractedInvoiceRecord
	if !h.bindJSON(c, &record) {
		return
	}
	respondOK(c, h.services.Engine.GenerateDiningPlan(&record))
}

// ValidateDining handles POST /api/rules/dining/validate
func (h *Handlers) ValidateDining(c *gin.Context) {
	var req DiningValidateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	issues := h.services.Engine.ValidateDiningApplication(&req.Application, &req.Invoice)
	if issues == nil {
		issues = []string{}
	}
	respondOK(c, DiningValidateResponse{Issues: issues})
}

// ValidateTravelItem handles POST /api/rules/travel/validate
func (h *Handlers) ValidateTravelItem(c *gin.Context) {
	var req TravelValidateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	respondOK(c, h.services.Engine.ValidateTravelBatchItem(&req.Record, req.ApplicationStart, req.ApplicationEnd, req.YearConfirmed))
}

// TravelReport handles POST /api/rules/travel/report
func (h *Handlers) TravelReport(c *gin.Context) {
	var req TravelReportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := utils.ValidateAmount(req.Options.AllowanceRate); err != nil {
		h.respondError(c, badRequest(err.Error()))
		return
	}
	respondOK(c, audit.CalculateTravelReport(req.Items, req.Options))
}

// ParseOutput handles POST /api/rules/parse
func (h *Handlers) ParseOutput(c *gin.Context) {
	var req ParseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	parser := h.services.Parser
	switch strings.TrimSpace(req.Kind) {
	case "", ParseKindInvoice:
		respondOK(c, parser.ParseInvoiceOutput(req.Text))
	case ParseKindClassifier:
		analysis, err := parser.ParseClassifierOutput(req.Text)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
			return
		}
		respondOK(c, analysis)
	case ParseKindDiningApplication:
		app, err := parser.ParseDiningApplicationOutput(req.Text)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err))
			return
		}
		respondOK(c, app)
	case ParseKindOCR:
		lines := req.Lines
		if len(lines) == 0 && req.Text != "" {
			lines = strings.Split(req.Text, "\n")
		}
		respondOK(c, invoice.ParseInvoiceText(lines, h.services.Engine.Registry(), h.now()))
	default:
		h.respondError(c, badRequest(fmt.Sprintf("unknown parse kind %q", req.Kind)))
	}
}
