package entity

// InvoiceType is the VAT invoice class printed on the document.
type InvoiceType string

const (
	InvoiceTypeSpecial InvoiceType = "增值税专用发票"
	InvoiceTypeGeneral InvoiceType = "普通发票"
	InvoiceTypeOther   InvoiceType = "其他"
)

// ExpenseType is the travel-expense subtype of a record.
type ExpenseType string

const (
	ExpenseTypeTrain         ExpenseType = "火车票"
	ExpenseTypeFlight        ExpenseType = "机票"
	ExpenseTypeTaxi          ExpenseType = "市内交通"
	ExpenseTypeAccommodation ExpenseType = "住宿费"
	ExpenseTypeTraining      ExpenseType = "培训费"
	ExpenseTypeDining        ExpenseType = "餐饮费"
	ExpenseTypeOther         ExpenseType = "其他"
)

// IsTransport reports whether the expense is an inter-city ticket.
func (t ExpenseType) IsTransport() bool {
	return t == ExpenseTypeTrain || t == ExpenseTypeFlight
}

// ExpenseCategory is the audit category derived from a record.
type ExpenseCategory string

const (
	CategoryDining        ExpenseCategory = "餐饮费"
	CategoryAccommodation ExpenseCategory = "住宿费"
	CategoryOther         ExpenseCategory = "其他"
)

// Document type tags returned by the oracle
const (
	DocumentTypeVATInvoice      = "vat_invoice"
	DocumentTypeTrainTicket     = "train_ticket"
	DocumentTypeFlightItinerary = "flight_itinerary"
	DocumentTypeBoardingPass    = "boarding_pass"
	DocumentTypeTaxiReceipt     = "taxi_receipt"
	DocumentTypeScreenshot      = "screenshot"
	DocumentTypeOther           = "other"
)

// Severity of a single audit check
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// GeneralStatus is the overall audit verdict of one record.
type GeneralStatus string

const (
	StatusValid   GeneralStatus = "valid"
	StatusWarning GeneralStatus = "warning"
	StatusInvalid GeneralStatus = "invalid"
)

// RefundStatus is the reviewer's decision on a detected refund.
type RefundStatus string

const (
	RefundPendingConfirmation RefundStatus = "pending_confirmation"
	RefundConfirmed           RefundStatus = "confirmed_refund"
	RefundConfirmedFailed     RefundStatus = "confirmed_failed"
)

// IsValid reports whether s is a known refund status.
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundPendingConfirmation, RefundConfirmed, RefundConfirmedFailed:
		return true
	}
	return false
}

// Default placeholder for unrecognized text fields
const Unrecognized = "未识别"
