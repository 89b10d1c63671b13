package entity

import "time"

// BatchMode selects which review flow a batch follows.
type BatchMode string

const (
	BatchModeAudit  BatchMode = "audit"
	BatchModeTravel BatchMode = "travel"
)

// ItemKind tells the processor which prompt(s) to use for a document.
type ItemKind string

const (
	ItemKindAuto              ItemKind = "auto"
	ItemKindInvoice           ItemKind = "invoice"
	ItemKindDiningApplication ItemKind = "dining_application"
	ItemKindTravelApplication ItemKind = "travel_application"
)

// IsValid reports whether k is a known item kind.
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindAuto, ItemKindInvoice, ItemKindDiningApplication, ItemKindTravelApplication:
		return true
	}
	return false
}

// ItemStatus is the processing state of a batch item.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusSuccess    ItemStatus = "success"
	ItemStatusError      ItemStatus = "error"
)

// Batch groups documents reviewed together.
type Batch struct {
	ID               string      `json:"id"`
	Mode             BatchMode   `json:"mode"`
	Label            string      `json:"label"`
	ApplicationStart string      `json:"application_start,omitempty"`
	ApplicationEnd   string      `json:"application_end,omitempty"`
	Usage            UsageBucket `json:"usage"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// BatchItem is one uploaded document and its processing outcome.
type BatchItem struct {
	ID            string                   `json:"id"`
	BatchID       string                   `json:"batch_id"`
	FileName      string                   `json:"file_name"`
	StorageKey    string                   `json:"storage_key"`
	MimeType      string                   `json:"mime_type"`
	Kind          ItemKind                 `json:"kind"`
	Provider      string                   `json:"provider"`
	Model         string                   `json:"model"`
	Status        ItemStatus               `json:"status"`
	Error         string                   `json:"error,omitempty"`
	Result        *ProcessedResult         `json:"result,omitempty"`
	Application   *DiningApplicationRecord `json:"application,omitempty"`
	Analysis      *SmartFileAnalysis       `json:"analysis,omitempty"`
	RefundStatus  RefundStatus             `json:"refund_status,omitempty"`
	YearConfirmed bool                     `json:"year_confirmed,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`

	// DiningIssues is derived by the pairing gate and never stored.
	DiningIssues []string `json:"dining_issues"`
}

// IsDiningInvoice reports whether the item is a processed dining invoice.
func (i *BatchItem) IsDiningInvoice() bool {
	return i.Status == ItemStatusSuccess && i.Result != nil && i.Result.Category == CategoryDining
}

// IsDiningApplication reports whether the item is a processed dining application.
func (i *BatchItem) IsDiningApplication() bool {
	return i.Status == ItemStatusSuccess && i.Application != nil
}

// HasIssue reports whether the item failed or carries dining issues.
func (i *BatchItem) HasIssue() bool {
	return i.Status == ItemStatusError || len(i.DiningIssues) > 0
}

// Record returns the extracted record or nil.
func (i *BatchItem) Record() *ExtractedInvoiceRecord {
	if i.Result == nil {
		return nil
	}
	return &i.Result.Data
}

// AuditFilter narrows the audit list view.
type AuditFilter string

const (
	FilterAll     AuditFilter = "all"
	FilterError   AuditFilter = "error"
	FilterSuccess AuditFilter = "success"
	FilterDining  AuditFilter = "dining"
)

// AuditStats summarizes an audit batch.
type AuditStats struct {
	Total       int `json:"total"`
	Processing  int `json:"processing"`
	Success     int `json:"success"`
	ErrorCount  int `json:"error_count"`
	DiningCount int `json:"dining_count"`
	IssueCount  int `json:"issue_count"`
}
