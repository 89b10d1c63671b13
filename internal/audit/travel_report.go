package audit

import (
	"fmt"
	"math"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

var documentTypeNames = map[string]string{
	entity.DocumentTypeTrainTicket:     "火车票",
	entity.DocumentTypeFlightItinerary: "行程单",
	entity.DocumentTypeBoardingPass:    "登机牌",
	entity.DocumentTypeTaxiReceipt:     "出租车票",
	entity.DocumentTypeScreenshot:      "订单截图",
	entity.DocumentTypeOther:           "其他凭证",
	entity.DocumentTypeVATInvoice:      "发票",
}

// DocumentTypeName translates a document type tag for display.
func DocumentTypeName(documentType string) string {
	if documentType == "" {
		documentType = entity.DocumentTypeOther
	}
	if name, ok := documentTypeNames[documentType]; ok {
		return name
	}
	return "其他"
}

// IsReportable reports whether an item counts toward a travel report: it was
// extracted successfully and is not a confirmed refund.
func IsReportable(item entity.TravelItem) bool {
	if item.Status != entity.ItemStatusSuccess || item.Result == nil {
		return false
	}
	return !(item.Result.IsRefundDetected && item.RefundStatus == entity.RefundConfirmed)
}

// CalculateTravelReport aggregates a travel batch. Amounts are accumulated at
// full precision; rounding is left to presentation.
func CalculateTravelReport(items []entity.TravelItem, opts entity.TravelReportOptions) entity.TravelReport {
	report := entity.TravelReport{
		AllowancePerDay:    opts.AllowanceRate,
		NonStandardDetails: []string{},
	}

	valid := make([]*entity.ExtractedInvoiceRecord, 0, len(items))
	for _, item := range items {
		if IsReportable(item) {
			valid = append(valid, item.Result)
		}
	}
	if len(valid) == 0 {
		return report
	}

	start, hasStart, end, hasEnd := tripRange(valid, opts)
	if hasStart {
		report.StartDate = formatDate(start)
	}
	if hasEnd {
		report.EndDate = formatDate(end)
	}
	if hasStart && hasEnd {
		diff := end.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		report.TotalDays = int(math.Ceil(float64(diff)/float64(day))) + 1
	}

	if opts.AllowanceEnabled {
		report.TotalAllowance = float64(report.TotalDays) * report.AllowancePerDay
	}

	// Tally non-standard documents in first-seen order
	var labels []string
	counts := make(map[string]int)

	for _, rec := range valid {
		amount := finiteOrZero(rec.TotalAmount)
		tax := finiteOrZero(rec.TaxAmount)

		report.GrandTotalAmount += amount
		report.GrandTotalTax += tax

		if rec.IsStandard() {
			report.StandardCount++
			report.StandardAmount += amount
		} else {
			report.NonStandardCount++
			report.NonStandardAmount += amount
			name := DocumentTypeName(rec.DocumentType)
			if _, seen := counts[name]; !seen {
				labels = append(labels, name)
			}
			counts[name]++
		}

		switch rec.ExpenseType {
		case entity.ExpenseTypeTrain, entity.ExpenseTypeFlight:
			report.InterCityAmount += amount
			report.InterCityTax += tax
		case entity.ExpenseTypeTaxi:
			report.IntraCityAmount += amount
			report.IntraCityTax += tax
		case entity.ExpenseTypeAccommodation:
			report.AccommodationAmount += amount
			report.AccommodationTax += tax
		case entity.ExpenseTypeTraining:
			report.TrainingAmount += amount
			report.TrainingTax += tax
		case entity.ExpenseTypeDining:
			report.DiningAmount += amount
			report.DiningTax += tax
		}
	}

	for _, name := range labels {
		report.NonStandardDetails = append(report.NonStandardDetails, fmt.Sprintf("%s x%d", name, counts[name]))
	}

	if opts.AllowanceEnabled {
		report.GrandTotalAmount += report.TotalAllowance
	}

	return report
}

// tripRange infers the trip window. Departure is the earliest transport
// ticket; the end is the latest transport or accommodation record. Either
// falls back to the full record span, and manual dates always win.
func tripRange(records []*entity.ExtractedInvoiceRecord, opts entity.TravelReportOptions) (start time.Time, hasStart bool, end time.Time, hasEnd bool) {
	var (
		all, transport, anchors []time.Time
	)
	for _, rec := range records {
		d, ok := parseDate(rec.InvoiceDate)
		if !ok {
			continue
		}
		all = append(all, d)
		if rec.ExpenseType.IsTransport() {
			transport = append(transport, d)
			anchors = append(anchors, d)
		} else if rec.ExpenseType == entity.ExpenseTypeAccommodation {
			anchors = append(anchors, d)
		}
	}

	start, hasStart = earliest(transport)
	if !hasStart {
		start, hasStart = earliest(all)
	}
	end, hasEnd = latest(anchors)
	if !hasEnd {
		end, hasEnd = latest(all)
	}

	if d, ok := parseDate(opts.ManualStartDate); ok {
		start, hasStart = d, true
	}
	if d, ok := parseDate(opts.ManualEndDate); ok {
		end, hasEnd = d, true
	}
	return start, hasStart, end, hasEnd
}

func earliest(dates []time.Time) (time.Time, bool) {
	if len(dates) == 0 {
		return time.Time{}, false
	}
	out := dates[0]
	for _, d := range dates[1:] {
		if d.Before(out) {
			out = d
		}
	}
	return out, true
}

func latest(dates []time.Time) (time.Time, bool) {
	if len(dates) == 0 {
		return time.Time{}, false
	}
	out := dates[0]
	for _, d := range dates[1:] {
		if d.After(out) {
			out = d
		}
	}
	return out, true
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
