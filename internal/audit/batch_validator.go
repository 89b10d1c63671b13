package audit

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

var ticketDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ValidateTravelBatchItem re-runs the compliance checks for one travel record
// and, for train and flight tickets, checks the ticket date against the
// application window [appStart, appEnd].
//
// A ticket dated January or February inside a same-year trip that touches
// November or December is ambiguous; the result then carries a YearConfirm
// and the range check waits for the reviewer's choice. Once the reviewer has
// picked the year (yearConfirmed), the stored date is range-checked as is.
func (e *Engine) ValidateTravelBatchItem(record *entity.ExtractedInvoiceRecord, appStart, appEnd string, yearConfirmed bool) entity.BatchValidation {
	if record == nil {
		panic("audit: ValidateTravelBatchItem called with nil record")
	}

	out := entity.BatchValidation{
		Errors:    []string{},
		DateState: entity.DateCheckSkipped,
	}

	processed := e.AuditInvoice(record)
	for _, c := range processed.Audit.Checks() {
		if !c.Passed && c.Severity != entity.SeveritySuccess {
			out.Errors = append(out.Errors, c.Message)
		}
	}

	if appStart == "" || appEnd == "" || !record.ExpenseType.IsTransport() {
		return out
	}
	start, okStart := parseDate(appStart)
	end, okEnd := parseDate(appEnd)
	if !okStart || !okEnd {
		return out
	}

	m := ticketDatePattern.FindStringSubmatch(record.InvoiceDate)
	if m != nil && !yearConfirmed && start.Year() == end.Year() {
		month, _ := strconv.Atoi(m[2])
		dayOfMonth, _ := strconv.Atoi(m[3])
		yearEndTrip := start.Month() >= 11 || end.Month() >= 11
		if yearEndTrip && month <= 2 {
			out.YearConfirm = &entity.YearConfirm{
				SuggestedYear: start.Year() + 1,
				AltYear:       start.Year(),
				Month:         month,
				Day:           dayOfMonth,
			}
			out.DateState = entity.DateCheckNeedsConfirm
			return out
		}
		out.NormalizedDate = fmt.Sprintf("%d-%02d-%02d", start.Year(), month, dayOfMonth)
	}

	compare := record.InvoiceDate
	if out.NormalizedDate != "" {
		compare = out.NormalizedDate
	}
	ticket, ok := parseDate(compare)
	if !ok {
		return out
	}
	if ticket.Before(start) || ticket.After(end) {
		out.Errors = append(out.Errors, fmt.Sprintf("行程日期异常: 车票日期(%s) 不在申请单范围(%s ~ %s) 内 ❌", compare, appStart, appEnd))
		out.DateState = entity.DateCheckOutOfRange
		return out
	}
	out.DateState = entity.DateCheckResolved
	return out
}
