// Package invoice turns raw oracle output into canonical records. Nothing in
// here fails on bad input: missing or mistyped fields fall back to the
// defaults below, and unparsable text goes through a regex fallback.
package invoice

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// stringField is one row of the string default policy. An empty or missing
// value takes fallback; fallbackToday uses the normalization date instead.
type stringField struct {
	key           string
	fallback      string
	fallbackToday bool
	set           func(r *entity.ExtractedInvoiceRecord, v string)
}

// amountField is one row of the numeric default policy. Amounts default to 0.
type amountField struct {
	key string
	set func(r *entity.ExtractedInvoiceRecord, v float64)
}

var stringFields = []stringField{
	{key: "buyerName", fallback: entity.Unrecognized, set: func(r *entity.ExtractedInvoiceRecord, v string) { r.BuyerName = v }},
	{key: "buyerTaxId", fallback: entity.Unrecognized, set: func(r *entity.ExtractedInvoiceRecord, v string) { r.BuyerTaxID = v }},
	{key: "documentType", fallback: entity.DocumentTypeOther, set: func(r *entity.ExtractedInvoiceRecord, v string) { r.DocumentType = v }},
	{key: "taxRate", set: func(r *entity.ExtractedInvoiceRecord, v string) { r.TaxRate = v }},
	{key: "invoiceDate", fallbackToday: true, set: func(r *entity.ExtractedInvoiceRecord, v string) { r.InvoiceDate = v }},
}

var amountFields = []amountField{
	{key: "totalAmount", set: func(r *entity.ExtractedInvoiceRecord, v float64) { r.TotalAmount = v }},
	{key: "taxAmount", set: func(r *entity.ExtractedInvoiceRecord, v float64) { r.TaxAmount = v }},
}

// Keyword tables, checked in order. Accommodation precedes dining.
var (
	expenseKeywords = []struct {
		keywords []string
		expense  entity.ExpenseType
	}{
		{[]string{"火车"}, entity.ExpenseTypeTrain},
		{[]string{"机票", "航空"}, entity.ExpenseTypeFlight},
		{[]string{"市内", "出租", "网约", "客运"}, entity.ExpenseTypeTaxi},
		{[]string{"住宿", "酒店"}, entity.ExpenseTypeAccommodation},
		{[]string{"培训"}, entity.ExpenseTypeTraining},
		{[]string{"餐饮"}, entity.ExpenseTypeDining},
	}

	// Ticket expense labels that imply a general invoice when the title is silent.
	ticketExpenseLabels = []string{"机票", "火车票", "市内交通"}
)

var (
	fallbackDatePattern   = regexp.MustCompile(`(\d{4})[-年/.](\d{1,2})[-月/.](\d{1,2})`)
	fallbackAmountPattern = regexp.MustCompile(`(?i)(价税合计|金额|总额|Total).*?(\d{1,3}(,\d{3})*(\.\d{2})?)`)
	leadingFloatPattern   = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)
	amountNoisePattern    = regexp.MustCompile(`[^\d.\-]`)
)

// DefaultRecord is the record used when the oracle returned nothing at all.
func DefaultRecord(now time.Time) entity.ExtractedInvoiceRecord {
	return entity.ExtractedInvoiceRecord{
		InvoiceType:  entity.InvoiceTypeOther,
		ExpenseType:  entity.ExpenseTypeOther,
		DocumentType: entity.DocumentTypeOther,
		BuyerName:    entity.Unrecognized,
		BuyerTaxID:   entity.Unrecognized,
		InvoiceDate:  now.Format(dateLayout),
		Items:        []string{},
	}
}

// Normalize maps a loosely typed oracle object onto a fully populated record.
func Normalize(raw map[string]any, now time.Time) entity.ExtractedInvoiceRecord {
	if raw == nil {
		return DefaultRecord(now)
	}

	rec := entity.ExtractedInvoiceRecord{Items: []string{}}
	for _, f := range stringFields {
		v := stringValue(raw[f.key])
		switch {
		case v != "":
		case f.fallbackToday:
			v = now.Format(dateLayout)
		default:
			v = f.fallback
		}
		f.set(&rec, v)
	}
	for _, f := range amountFields {
		f.set(&rec, ParseAmount(raw[f.key]))
	}

	expenseHint := stringValue(raw["expenseType"])
	rec.ExpenseType = matchExpenseType(expenseHint)
	rec.InvoiceType = matchInvoiceType(stringValue(raw["invoiceTitle"]), stringValue(raw["invoiceType"]), expenseHint)
	rec.IsRefundDetected = truthy(raw["isRefundDetected"])

	if items, ok := raw["items"].([]any); ok {
		for _, it := range items {
			if s := itemText(it); s != "" {
				rec.Items = append(rec.Items, s)
			}
		}
	}
	return rec
}

func matchInvoiceType(title, invoiceType, expenseHint string) entity.InvoiceType {
	source := title + invoiceType
	switch {
	case strings.Contains(source, "专用"):
		return entity.InvoiceTypeSpecial
	case strings.Contains(source, "普通"):
		return entity.InvoiceTypeGeneral
	case strings.Contains(invoiceType, "普票"):
		return entity.InvoiceTypeGeneral
	case strings.Contains(invoiceType, "专票"):
		return entity.InvoiceTypeSpecial
	}
	for _, label := range ticketExpenseLabels {
		if expenseHint == label {
			return entity.InvoiceTypeGeneral
		}
	}
	return entity.InvoiceTypeOther
}

func matchExpenseType(hint string) entity.ExpenseType {
	for _, row := range expenseKeywords {
		for _, kw := range row.keywords {
			if strings.Contains(hint, kw) {
				return row.expense
			}
		}
	}
	return entity.ExpenseTypeOther
}

// FallbackRegexParser reconstructs what it can from unstructured text on top
// of base.
func FallbackRegexParser(text string, base entity.ExtractedInvoiceRecord) entity.ExtractedInvoiceRecord {
	rec := base
	if base.Items != nil {
		rec.Items = append([]string(nil), base.Items...)
	}

	switch {
	case strings.Contains(text, "专用发票"):
		rec.InvoiceType = entity.InvoiceTypeSpecial
	case strings.Contains(text, "普通发票"):
		rec.InvoiceType = entity.InvoiceTypeGeneral
	}

	switch {
	case strings.Contains(text, "住宿"), strings.Contains(text, "酒店"):
		rec.ExpenseType = entity.ExpenseTypeAccommodation
	case strings.Contains(text, "出租"), strings.Contains(text, "运输"):
		rec.ExpenseType = entity.ExpenseTypeTaxi
	case strings.Contains(text, "登机牌"), strings.Contains(text, "行程单"):
		rec.ExpenseType = entity.ExpenseTypeFlight
	}

	if strings.Contains(text, "退票") || strings.Contains(text, "退款") {
		rec.IsRefundDetected = true
	}

	if m := fallbackDatePattern.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[2])
		dayOfMonth, _ := strconv.Atoi(m[3])
		rec.InvoiceDate = fmt.Sprintf("%s-%02d-%02d", m[1], month, dayOfMonth)
	}

	if m := fallbackAmountPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64); err == nil {
			rec.TotalAmount = v
		}
	}
	return rec
}

// ParseAmount coerces a numeric or string amount. Thousands separators and
// currency noise are stripped; anything unparsable or negative is 0.
func ParseAmount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return nonNegative(t)
	case int:
		return nonNegative(float64(t))
	case int64:
		return nonNegative(float64(t))
	case string:
		clean := amountNoisePattern.ReplaceAllString(strings.ReplaceAll(t, ",", ""), "")
		m := leadingFloatPattern.FindString(clean)
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0
		}
		return nonNegative(f)
	}
	return 0
}

// parseCount coerces a headcount to a non-negative whole number.
func parseCount(v any) int {
	var f float64
	switch t := v.(type) {
	case bool:
		if t {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		f = ParseAmount(v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return int(f)
}

func nonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// stringValue renders scalars as text; anything else is empty.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// truthy reads loose booleans. Strings are parsed, so "false" is false.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		s := strings.TrimSpace(t)
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s != ""
	case nil:
		return false
	}
	return true
}

func itemText(v any) string {
	if obj, ok := v.(map[string]any); ok {
		return stringValue(obj["name"])
	}
	return stringValue(v)
}
