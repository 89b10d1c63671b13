package invoice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// CompanyDirectory resolves known buyer companies. *audit.CompanyRegistry
// satisfies it.
type CompanyDirectory interface {
	Names() []string
	Lookup(name string) (string, bool)
}

const (
	ocrUnknownBuyer = "未识别 (请人工核对)"
	ocrUnknownItems = "未识别明细"
	ocrTaxRate      = "N/A"
)

var (
	ocrDatePattern  = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日`)
	ocrCentsPattern = regexp.MustCompile(`(\d+\.\d{2})`)
	ocrMoneyPattern = regexp.MustCompile(`[¥￥]?\s*(\d{1,3}(,\d{3})*(\.\d{2})?)\b`)
	ocrTaxIDPattern = regexp.MustCompile(`[0-9A-Z]{18}`)
	ocrDigitPattern = regexp.MustCompile(`\d`)
	ocrSpacePattern = regexp.MustCompile(`\s`)
	ocrItemKeywords = []string{"餐饮", "服务费", "住宿", "客房", "餐费", "食品", "酒店"}
)

var ocrExpenseMatches = []struct {
	keywords []string
	expense  entity.ExpenseType
}{
	{[]string{"火车", "高铁", "动车"}, entity.ExpenseTypeTrain},
	{[]string{"机票", "航空", "行程单"}, entity.ExpenseTypeFlight},
	{[]string{"出租", "客运", "滴滴", "打车"}, entity.ExpenseTypeTaxi},
	{[]string{"住宿", "酒店", "宾馆", "房费"}, entity.ExpenseTypeAccommodation},
	{[]string{"培训费"}, entity.ExpenseTypeTraining},
}

// ParseInvoiceText builds a record from OCR text lines without an oracle.
// The total is the largest amount on a 价税合计/小写 line, or the largest
// money-looking number anywhere when no such line exists.
func ParseInvoiceText(lines []string, companies CompanyDirectory, now time.Time) entity.ExtractedInvoiceRecord {
	fullText := strings.Join(lines, " ")

	rec := entity.ExtractedInvoiceRecord{
		InvoiceType:  entity.InvoiceTypeOther,
		ExpenseType:  entity.ExpenseTypeOther,
		DocumentType: entity.DocumentTypeOther,
		TaxRate:      ocrTaxRate,
		InvoiceDate:  now.Format(dateLayout),
	}

	switch {
	case strings.Contains(fullText, "专用发票"):
		rec.InvoiceType = entity.InvoiceTypeSpecial
	case strings.Contains(fullText, "普通发票"):
		rec.InvoiceType = entity.InvoiceTypeGeneral
	}

	if m := ocrDatePattern.FindStringSubmatch(fullText); m != nil {
		month, _ := strconv.Atoi(m[2])
		dayOfMonth, _ := strconv.Atoi(m[3])
		rec.InvoiceDate = fmt.Sprintf("%s-%02d-%02d", m[1], month, dayOfMonth)
	}

	rec.TotalAmount = ocrTotal(lines, fullText)

	for _, line := range lines {
		if strings.Contains(line, "税额") && ocrDigitPattern.MatchString(line) {
			if m := ocrCentsPattern.FindString(line); m != "" {
				rec.TaxAmount, _ = strconv.ParseFloat(m, 64)
			}
		}
	}

	if companies != nil {
		for _, name := range companies.Names() {
			if strings.Contains(fullText, name) {
				rec.BuyerName = name
				rec.BuyerTaxID, _ = companies.Lookup(name)
				break
			}
		}
	}
	if rec.BuyerTaxID == "" {
		rec.BuyerTaxID = ocrTaxIDPattern.FindString(fullText)
	}
	if rec.BuyerName == "" {
		rec.BuyerName = ocrUnknownBuyer
	}
	if rec.BuyerTaxID == "" {
		rec.BuyerTaxID = entity.Unrecognized
	}

	for _, line := range lines {
		for _, kw := range ocrItemKeywords {
			if strings.Contains(line, kw) {
				rec.Items = append(rec.Items, line)
				break
			}
		}
	}
	if len(rec.Items) == 0 {
		rec.Items = []string{ocrUnknownItems}
	}

ExpenseLoop:
	for _, row := range ocrExpenseMatches {
		for _, kw := range row.keywords {
			if strings.Contains(fullText, kw) {
				rec.ExpenseType = row.expense
				break ExpenseLoop
			}
		}
	}

	return rec
}

func ocrTotal(lines []string, fullText string) float64 {
	var best float64
	found := false
	for _, line := range lines {
		clean := ocrSpacePattern.ReplaceAllString(line, "")
		if !strings.Contains(clean, "价税合计") && !strings.Contains(clean, "小写") {
			continue
		}
		if m := ocrCentsPattern.FindString(clean); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil && (!found || v > best) {
				best, found = v, true
			}
		}
	}
	if found {
		return best
	}

	for _, m := range ocrMoneyPattern.FindAllStringSubmatch(fullText, -1) {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && v > best {
			best = v
		}
	}
	return best
}
