package report

import (
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// SuggestedFileName composes <label>_<amount>元_<date> for a record, with the
// date written as 2025.06.01. Unparsable dates are used as extracted.
func SuggestedFileName(label string, record *entity.ExtractedInvoiceRecord) string {
	if label == "" {
		label = string(entity.CategoryOther)
	}
	amount := strconv.FormatFloat(math.Round(record.TotalAmount*100)/100, 'f', -1, 64)

	date := strings.TrimSpace(record.InvoiceDate)
	if t, err := time.Parse("2006-01-02", date); err == nil {
		date = t.Format("2006.01.02")
	}
	if date == "" {
		return label + "_" + amount + "元"
	}
	return label + "_" + amount + "元_" + date
}

// WithExtension appends the extension of original to name.
func WithExtension(name, original string) string {
	return name + strings.ToLower(path.Ext(original))
}
