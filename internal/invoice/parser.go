package invoice

import (
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

var (
	// ErrClassifierOutput is returned when classifier output holds no object.
	ErrClassifierOutput = errors.New("分类失败，AI 返回格式异常")

	// ErrApplicationOutput is returned when dining-application output holds no object.
	ErrApplicationOutput = errors.New("申请单识别失败，AI 返回格式异常")
)

const (
	defaultSuggestedName = "未命名文件"
	defaultSortCategory  = 99
)

// English words the classifier tends to leave in file names.
var suggestedNameTranslations = []struct {
	pattern *regexp.Regexp
	zh      string
}{
	{regexp.MustCompile(`(?i)Notification`), "通知"},
	{regexp.MustCompile(`(?i)Invoice`), "发票"},
	{regexp.MustCompile(`(?i)Receipt`), "收据"},
	{regexp.MustCompile(`(?i)Application`), "申请单"},
	{regexp.MustCompile(`(?i)Payment`), "付款凭证"},
	{regexp.MustCompile(`(?i)Ticket`), "票据"},
	{regexp.MustCompile(`(?i)Hotel`), "酒店"},
	{regexp.MustCompile(`(?i)Flight`), "机票"},
	{regexp.MustCompile(`(?i)Train`), "火车票"},
	{regexp.MustCompile(`(?i)Taxi`), "打车票"},
}

// Parser converts raw oracle text into domain records. Schema mismatches are
// logged and never block normalization.
type Parser struct {
	schemas *SchemaSet
	logger  *zap.Logger
	now     func() time.Time
}

// NewParser creates a parser. A nil schema set disables schema checks.
func NewParser(schemas *SchemaSet, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		schemas: schemas,
		logger:  logger,
		now:     time.Now,
	}
}

// ParseInvoiceOutput never fails: undecodable text goes through the regex
// fallback starting from an empty record.
func (p *Parser) ParseInvoiceOutput(text string) entity.ExtractedInvoiceRecord {
	raw, err := ExtractJSON(text)
	if err != nil {
		p.logger.Warn("Invoice output is not JSON, using regex fallback", zap.Error(err))
		return FallbackRegexParser(text, entity.ExtractedInvoiceRecord{
			InvoiceType: entity.InvoiceTypeOther,
			ExpenseType: entity.ExpenseTypeOther,
			Items:       []string{},
		})
	}
	p.checkSchema(SchemaInvoice, raw)
	return Normalize(raw, p.now())
}

// ParseClassifierOutput reads the classifier's view of a document.
func (p *Parser) ParseClassifierOutput(text string) (*entity.SmartFileAnalysis, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		p.logger.Warn("Classifier output is not JSON", zap.Error(err))
		return nil, ErrClassifierOutput
	}
	p.checkSchema(SchemaClassifier, raw)

	name := stringValue(raw["suggestedName"])
	if name == "" {
		name = defaultSuggestedName
	}
	for _, tr := range suggestedNameTranslations {
		name = tr.pattern.ReplaceAllLiteralString(name, tr.zh)
	}

	fileType := stringValue(raw["fileType"])
	switch fileType {
	case entity.FileTypeInvoice, entity.FileTypeApplication, entity.FileTypeNotification:
	default:
		fileType = entity.FileTypeOther
	}

	sortCategory := parseCount(raw["sortCategory"])
	if sortCategory == 0 {
		sortCategory = defaultSortCategory
	}

	analysis := &entity.SmartFileAnalysis{
		FileType:       fileType,
		IsReimbursable: truthy(raw["isReimbursable"]),
		SuggestedName:  name,
		SortCategory:   sortCategory,
		Summary:        stringValue(raw["summary"]),
	}

	if app, ok := raw["applicationData"].(map[string]any); ok {
		analysis.Application = &entity.ApplicationData{
			StartDate: stringValue(app["startDate"]),
			EndDate:   stringValue(app["endDate"]),
			Location:  stringValue(app["location"]),
		}
	}

	if data, ok := raw["extractedData"].(map[string]any); ok && (fileType == entity.FileTypeInvoice || analysis.IsReimbursable) {
		rec := Normalize(data, p.now())
		analysis.ExtractedData = &rec
	}
	return analysis, nil
}

// ParseDiningApplicationOutput reads a dining application form.
func (p *Parser) ParseDiningApplicationOutput(text string) (*entity.DiningApplicationRecord, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		p.logger.Warn("Dining application output is not JSON", zap.Error(err))
		return nil, ErrApplicationOutput
	}
	p.checkSchema(SchemaDiningApplication, raw)

	return &entity.DiningApplicationRecord{
		IsDiningApplication: truthy(raw["isDiningApplication"]),
		Title:               stringValue(raw["title"]),
		ApplicationDate:     stringValue(raw["applicationDate"]),
		EstimatedAmount:     ParseAmount(raw["estimatedAmount"]),
		TotalPeople:         parseCount(raw["totalPeople"]),
		StaffCount:          parseCount(raw["staffCount"]),
		GuestCount:          parseCount(raw["guestCount"]),
	}, nil
}

func (p *Parser) checkSchema(kind SchemaKind, raw map[string]any) {
	if p.schemas == nil {
		return
	}
	if err := p.schemas.Validate(kind, raw); err != nil {
		p.logger.Warn("Oracle output schema mismatch",
			zap.String("schema", string(kind)),
			zap.Error(err))
	}
}
