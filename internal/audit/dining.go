package audit

import (
	"fmt"
	"math"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// maxBacktrackDays bounds the search for the working day before an invoice.
const maxBacktrackDays = 7

// GenerateDiningPlan derives the dining application a reviewer expects for a
// dining invoice: the smallest multiple of the policy amount strictly above
// the invoice total, one head per multiple, and the previous working day.
func (e *Engine) GenerateDiningPlan(record *entity.ExtractedInvoiceRecord) entity.DiningPlan {
	if record == nil {
		panic("audit: GenerateDiningPlan called with nil record")
	}

	multiple := e.dining.AmountMultiple
	factor := math.Floor(math.Max(record.TotalAmount, 0)/multiple) + 1
	estimated := factor * multiple
	totalPeople := int(factor)

	staff := 0
	if totalPeople > 1 {
		staff = min(totalPeople-1, 3)
	}
	guests := totalPeople - staff

	appDate := e.previousWorkingDay(record.InvoiceDate)

	return entity.DiningPlan{
		ApplicationDate: appDate,
		EstimatedAmount: estimated,
		TotalPeople:     totalPeople,
		StaffCount:      staff,
		GuestCount:      guests,
		Notes: []string{
			fmt.Sprintf("申请单日期: %s (基于发票日期 %s 前推工作日)", appDate, record.InvoiceDate),
			fmt.Sprintf("预计金额: %s元 (实际金额 %s元)", formatAmount(estimated), formatAmount(record.TotalAmount)),
			fmt.Sprintf("人员分配: 总%d人 (陪同%d人, 招待%d人)", totalPeople, staff, guests),
		},
	}
}

// previousWorkingDay scans back from the day before invoiceDate. When no
// working day is found within maxBacktrackDays, or the date does not parse,
// the invoice date itself is returned.
func (e *Engine) previousWorkingDay(invoiceDate string) string {
	current, ok := parseDate(invoiceDate)
	if !ok {
		return invoiceDate
	}
	for i := 0; i < maxBacktrackDays; i++ {
		current = current.AddDate(0, 0, -1)
		if e.calendar.IsWorkingDay(current) {
			return formatDate(current)
		}
	}
	return invoiceDate
}

// ValidateDiningApplication cross-checks a submitted dining application against
// the plan derived from its invoice. All violations are collected; an empty
// slice means the application is compliant.
func (e *Engine) ValidateDiningApplication(app *entity.DiningApplicationRecord, invoice *entity.ExtractedInvoiceRecord) []string {
	if app == nil || invoice == nil {
		panic("audit: ValidateDiningApplication called with nil input")
	}

	policy := e.dining
	plan := e.GenerateDiningPlan(invoice)
	issues := []string{}

	derivedTotal := app.StaffCount + app.GuestCount
	totalPeople := derivedTotal
	if app.TotalPeople > 0 {
		totalPeople = app.TotalPeople
	}

	if app.EstimatedAmount <= 0 {
		issues = append(issues, "请填写申请金额")
	}
	if policy.RequireAmountGreaterThanInvoice && app.EstimatedAmount <= invoice.TotalAmount {
		issues = append(issues, fmt.Sprintf("申请金额必须大于发票金额（申请 %s / 发票 %s）",
			formatAmount(app.EstimatedAmount), formatAmount(invoice.TotalAmount)))
	}
	if math.Mod(app.EstimatedAmount, policy.AmountMultiple) != 0 {
		issues = append(issues, fmt.Sprintf("申请金额需为 %s 的整数倍（当前 %s）",
			formatAmount(policy.AmountMultiple), formatAmount(app.EstimatedAmount)))
	}
	if app.StaffCount < policy.BaseStaffMin || app.StaffCount > policy.BaseStaffMax {
		issues = append(issues, fmt.Sprintf("陪同人数应为 %d-%d 人（当前 %d）",
			policy.BaseStaffMin, policy.BaseStaffMax, app.StaffCount))
	}
	if app.TotalPeople > 0 && derivedTotal != app.TotalPeople {
		issues = append(issues, fmt.Sprintf("陪同人数 + 招待人数应等于总人数（%d+%d ≠ %d）",
			app.StaffCount, app.GuestCount, app.TotalPeople))
	}

	if totalPeople <= 0 {
		issues = append(issues, "请填写陪同人数与招待人数")
	} else {
		r := e.resolveStaffRange(totalPeople)
		if app.StaffCount < r.StaffMin || app.StaffCount > r.StaffMax {
			issues = append(issues, fmt.Sprintf("%s时，陪同人数建议 %d-%d 人（当前 %d）",
				r.Label, r.StaffMin, r.StaffMax, app.StaffCount))
		}
	}

	if app.ApplicationDate != "" && app.ApplicationDate != plan.ApplicationDate {
		issues = append(issues, fmt.Sprintf("申请单日期应为 %s（当前 %s）", plan.ApplicationDate, app.ApplicationDate))
	}
	if app.ApplicationDate == "" {
		issues = append(issues, "请填写申请单日期")
	}

	return issues
}

// resolveStaffRange returns the first tier containing total, or the base
// staff range when no tier matches.
func (e *Engine) resolveStaffRange(total int) entity.StaffRange {
	for _, r := range e.dining.StaffRanges {
		if r.Contains(total) {
			return r
		}
	}
	return entity.StaffRange{
		StaffMin: e.dining.BaseStaffMin,
		StaffMax: e.dining.BaseStaffMax,
		Label:    "默认范围",
	}
}
