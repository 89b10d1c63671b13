package entity

// TravelReport aggregates a travel batch. It is a pure function of the
// current item list and settings and is rebuilt on every change.
type TravelReport struct {
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	TotalDays       int     `json:"total_days"`
	AllowancePerDay float64 `json:"allowance_per_day"`
	TotalAllowance  float64 `json:"total_allowance"`

	InterCityAmount     float64 `json:"inter_city_amount"`
	InterCityTax        float64 `json:"inter_city_tax"`
	IntraCityAmount     float64 `json:"intra_city_amount"`
	IntraCityTax        float64 `json:"intra_city_tax"`
	AccommodationAmount float64 `json:"accommodation_amount"`
	AccommodationTax    float64 `json:"accommodation_tax"`
	TrainingAmount      float64 `json:"training_amount"`
	TrainingTax         float64 `json:"training_tax"`
	DiningAmount        float64 `json:"dining_amount"`
	DiningTax           float64 `json:"dining_tax"`

	GrandTotalAmount float64 `json:"grand_total_amount"`
	GrandTotalTax    float64 `json:"grand_total_tax"`

	StandardCount      int      `json:"standard_count"`
	StandardAmount     float64  `json:"standard_amount"`
	NonStandardCount   int      `json:"non_standard_count"`
	NonStandardAmount  float64  `json:"non_standard_amount"`
	NonStandardDetails []string `json:"non_standard_details"`
}

// TravelReportOptions carries the reviewer-controlled report settings.
type TravelReportOptions struct {
	ManualStartDate  string  `json:"manual_start_date,omitempty"`
	ManualEndDate    string  `json:"manual_end_date,omitempty"`
	AllowanceEnabled bool    `json:"allowance_enabled"`
	AllowanceRate    float64 `json:"allowance_rate"`
}

// TravelItem is the report's view of one batch entry.
type TravelItem struct {
	Status       ItemStatus              `json:"status"`
	Result       *ExtractedInvoiceRecord `json:"result,omitempty"`
	RefundStatus RefundStatus            `json:"refund_status,omitempty"`
}

// YearConfirm asks the reviewer to pick the year of a ticket dated early in a
// year-end trip.
type YearConfirm struct {
	SuggestedYear int `json:"suggested_year"`
	AltYear       int `json:"alt_year"`
	Month         int `json:"month"`
	Day           int `json:"day"`
}

// DateCheckState is the three-way outcome of the ticket date check.
type DateCheckState string

const (
	DateCheckSkipped      DateCheckState = "skipped"
	DateCheckResolved     DateCheckState = "resolved"
	DateCheckNeedsConfirm DateCheckState = "needs_confirmation"
	DateCheckOutOfRange   DateCheckState = "out_of_range"
)

// BatchValidation is the per-item result of the travel batch validator.
type BatchValidation struct {
	Errors         []string       `json:"errors"`
	DateState      DateCheckState `json:"date_state"`
	NormalizedDate string         `json:"normalized_date,omitempty"`
	YearConfirm    *YearConfirm   `json:"year_confirm,omitempty"`
}
