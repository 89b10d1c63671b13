package audit

import (
	"fmt"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

const (
	msgCompanyMatched     = "公司名称与税号匹配 ✅"
	msgInvoiceTypeOK      = "发票类型符合要求 ✅"
	msgAccommodationType  = "住宿费必须开具增值税专用发票，当前为普通发票。不可报销 ❌"
	msgUnknownCompanyTmpl = "警告: 未知公司名称 \"%s\"。请人工核对税号。 ⚠️"
	msgTaxIDMismatchTmpl  = "错误: 税号不匹配! \n发票: %s \n系统: %s ❌"
)

// AuditInvoice checks a record against the company registry and the
// invoice-type policy. Mismatches are reported in the result, never as errors.
func (e *Engine) AuditInvoice(record *entity.ExtractedInvoiceRecord) entity.ProcessedResult {
	if record == nil {
		panic("audit: AuditInvoice called with nil record")
	}

	category := DetectCategory(record)
	result := entity.AuditResult{
		CompanyMatch:     entity.CheckResult{Passed: true, Message: msgCompanyMatched, Severity: entity.SeveritySuccess},
		InvoiceTypeCheck: entity.CheckResult{Passed: true, Message: msgInvoiceTypeOK, Severity: entity.SeveritySuccess},
	}

	expected, known := e.registry.Lookup(record.BuyerName)
	switch {
	case !known:
		result.CompanyMatch = entity.CheckResult{
			Message:  fmt.Sprintf(msgUnknownCompanyTmpl, record.BuyerName),
			Severity: entity.SeverityWarning,
		}
	case expected != record.BuyerTaxID:
		result.CompanyMatch = entity.CheckResult{
			Message:  fmt.Sprintf(msgTaxIDMismatchTmpl, record.BuyerTaxID, expected),
			Severity: entity.SeverityError,
		}
	}

	accommodation := category == entity.CategoryAccommodation || record.ExpenseType == entity.ExpenseTypeAccommodation
	if accommodation && record.InvoiceType != entity.InvoiceTypeSpecial {
		result.InvoiceTypeCheck = entity.CheckResult{
			Message:  msgAccommodationType,
			Severity: entity.SeverityError,
		}
	}

	result.GeneralStatus = generalStatus(result.Checks())

	processed := entity.ProcessedResult{
		Data:     *record,
		Audit:    result,
		Category: category,
	}
	if category == entity.CategoryDining && result.GeneralStatus != entity.StatusInvalid {
		plan := e.GenerateDiningPlan(record)
		processed.DiningPlan = &plan
	}
	return processed
}

// generalStatus is invalid if any check is an error, warning if any check
// failed with a warning, otherwise valid.
func generalStatus(checks []entity.CheckResult) entity.GeneralStatus {
	status := entity.StatusValid
	for _, c := range checks {
		switch c.Severity {
		case entity.SeverityError:
			return entity.StatusInvalid
		case entity.SeverityWarning:
			status = entity.StatusWarning
		}
	}
	return status
}
