package entity

// File types returned by the classifier prompt
const (
	FileTypeInvoice      = "invoice"
	FileTypeApplication  = "application"
	FileTypeNotification = "notification"
	FileTypeOther        = "other"
)

// ApplicationData is the trip window read from a travel application form.
type ApplicationData struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Location  string `json:"location,omitempty"`
}

// SmartFileAnalysis is the classifier's view of an arbitrary document.
type SmartFileAnalysis struct {
	FileType       string                  `json:"file_type"`
	IsReimbursable bool                    `json:"is_reimbursable"`
	SuggestedName  string                  `json:"suggested_name"`
	SortCategory   int                     `json:"sort_category"`
	Summary        string                  `json:"summary"`
	Application    *ApplicationData        `json:"application_data,omitempty"`
	ExtractedData  *ExtractedInvoiceRecord `json:"extracted_data,omitempty"`
}
