package entity

// ExtractedInvoiceRecord is the canonical form of one scanned document.
// Records are immutable after normalization except InvoiceDate, which may be
// rewritten when a ticket's year ambiguity is resolved.
type ExtractedInvoiceRecord struct {
	InvoiceType      InvoiceType `json:"invoice_type"`
	ExpenseType      ExpenseType `json:"expense_type"`
	DocumentType     string      `json:"document_type"`
	BuyerName        string      `json:"buyer_name"`
	BuyerTaxID       string      `json:"buyer_tax_id"`
	TotalAmount      float64     `json:"total_amount"`
	TaxAmount        float64     `json:"tax_amount"`
	TaxRate          string      `json:"tax_rate"`
	InvoiceDate      string      `json:"invoice_date"`
	Items            []string    `json:"items"`
	IsRefundDetected bool        `json:"is_refund_detected"`
}

// IsStandard reports whether the record is a VAT invoice for reporting purposes.
func (r *ExtractedInvoiceRecord) IsStandard() bool {
	return r.DocumentType == DocumentTypeVATInvoice
}
