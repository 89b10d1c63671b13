package entity

// DiningPlan is the expected dining-application filing derived from one
// dining invoice. It is recomputed on demand and never stored.
type DiningPlan struct {
	ApplicationDate string   `json:"application_date"`
	EstimatedAmount float64  `json:"estimated_amount"`
	TotalPeople     int      `json:"total_people"`
	StaffCount      int      `json:"staff_count"`
	GuestCount      int      `json:"guest_count"`
	Notes           []string `json:"notes"`
}

// DiningApplicationRecord is a submitted 业务招待费申请单.
type DiningApplicationRecord struct {
	IsDiningApplication bool    `json:"is_dining_application"`
	Title               string  `json:"title,omitempty"`
	ApplicationDate     string  `json:"application_date"`
	EstimatedAmount     float64 `json:"estimated_amount"`
	TotalPeople         int     `json:"total_people"`
	StaffCount          int     `json:"staff_count"`
	GuestCount          int     `json:"guest_count"`
}

// StaffRange is a headcount tier with its allowed accompanying-staff range.
// MaxTotal <= 0 means the tier is unbounded above.
type StaffRange struct {
	MinTotal int    `json:"min_total" mapstructure:"min_total"`
	MaxTotal int    `json:"max_total" mapstructure:"max_total"`
	StaffMin int    `json:"staff_min" mapstructure:"staff_min"`
	StaffMax int    `json:"staff_max" mapstructure:"staff_max"`
	Label    string `json:"label" mapstructure:"label"`
}

// Contains reports whether total falls inside the tier.
func (r StaffRange) Contains(total int) bool {
	return total >= r.MinTotal && (r.MaxTotal <= 0 || total <= r.MaxTotal)
}

// DiningPolicy holds the dining-application rules.
type DiningPolicy struct {
	AmountMultiple                  float64      `json:"amount_multiple" mapstructure:"amount_multiple"`
	RequireAmountGreaterThanInvoice bool         `json:"require_amount_greater_than_invoice" mapstructure:"require_amount_greater_than_invoice"`
	BaseStaffMin                    int          `json:"base_staff_min" mapstructure:"base_staff_min"`
	BaseStaffMax                    int          `json:"base_staff_max" mapstructure:"base_staff_max"`
	StaffRanges                     []StaffRange `json:"staff_ranges" mapstructure:"staff_ranges"`
}

// DefaultDiningPolicy returns the built-in dining rules. Tiers are matched in
// order, first match wins.
func DefaultDiningPolicy() DiningPolicy {
	return DiningPolicy{
		AmountMultiple:                  150,
		RequireAmountGreaterThanInvoice: true,
		BaseStaffMin:                    1,
		BaseStaffMax:                    3,
		StaffRanges: []StaffRange{
			{MinTotal: 0, MaxTotal: 6, StaffMin: 1, StaffMax: 2, Label: "总人数较少"},
			{MinTotal: 10, MaxTotal: 0, StaffMin: 2, StaffMax: 3, Label: "总人数较多"},
			{MinTotal: 7, MaxTotal: 9, StaffMin: 1, StaffMax: 3, Label: "总人数中等"},
		},
	}
}
