package entity

// CheckResult is the outcome of one audit rule.
type CheckResult struct {
	Passed   bool     `json:"passed"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// AuditResult is the compliance outcome of a single record.
type AuditResult struct {
	CompanyMatch     CheckResult   `json:"company_match"`
	InvoiceTypeCheck CheckResult   `json:"invoice_type_check"`
	GeneralStatus    GeneralStatus `json:"general_status"`
}

// Checks returns the sub-checks in display order.
func (a *AuditResult) Checks() []CheckResult {
	return []CheckResult{a.CompanyMatch, a.InvoiceTypeCheck}
}

// ProcessedResult bundles a record with its audit verdict.
type ProcessedResult struct {
	Data       ExtractedInvoiceRecord `json:"data"`
	Audit      AuditResult            `json:"audit"`
	Category   ExpenseCategory        `json:"category"`
	DiningPlan *DiningPlan            `json:"dining_plan,omitempty"`
}
