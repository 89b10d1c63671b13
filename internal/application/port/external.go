package port

import (
	"context"
	"io"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/internal/report"
)

// OracleRequest is one document page sent to the vision oracle.
type OracleRequest struct {
	Provider string
	Model    string
	APIKey   string
	FileName string
	Image    []byte
	MimeType string
	BatchID  string
}

// Oracle defines the vision extraction operations. Each call returns the raw
// model text; parsing belongs to the invoice package.
type Oracle interface {
	ExtractInvoice(ctx context.Context, req OracleRequest) (string, error)
	ExtractDiningApplication(ctx context.Context, req OracleRequest) (string, error)
	Classify(ctx context.Context, req OracleRequest) (string, error)
}

// ModelCatalog lists models offered free of charge.
type ModelCatalog interface {
	FreeVisionModels(ctx context.Context) ([]string, error)
}

// UsageRecorder receives the token usage of every successful oracle call.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec entity.UsageRecord) error
}

// DocumentRenderer turns an uploaded document into images.
type DocumentRenderer interface {
	Render(data []byte, mimeType string) ([]invoice.Page, error)
}

// MessageSender defines chat message operations
type MessageSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// ProviderDirectory knows the configured oracle providers.
type ProviderDirectory interface {
	IsValid(key string) bool
	Keys() []string
	DefaultModel(key string) string
}

// ReportWriter renders a travel report workbook.
type ReportWriter interface {
	WriteTravelReport(w io.Writer, wb report.TravelWorkbook) error
}
