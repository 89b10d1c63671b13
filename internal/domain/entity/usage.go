package entity

// UsageBucket accumulates token counts.
type UsageBucket struct {
	Prompt     int64 `json:"prompt"`
	Completion int64 `json:"completion"`
	Total      int64 `json:"total"`
}

// Add folds one call's tokens into the bucket.
func (b *UsageBucket) Add(prompt, completion int64) {
	b.Prompt += prompt
	b.Completion += completion
	b.Total += prompt + completion
}

// UsageRecord is the token usage of one oracle call.
type UsageRecord struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
	BatchID          string `json:"batch_id,omitempty"`
}

// ModelUsage is usage for one model, overall and by month (YYYY-MM).
type ModelUsage struct {
	Total   UsageBucket            `json:"total"`
	Monthly map[string]UsageBucket `json:"monthly"`
}

// ProviderUsage is usage for one provider broken down by month and model.
type ProviderUsage struct {
	Total   UsageBucket            `json:"total"`
	Monthly map[string]UsageBucket `json:"monthly"`
	Models  map[string]*ModelUsage `json:"models"`
}

// UsageReport is the full token usage breakdown.
type UsageReport struct {
	Total     UsageBucket               `json:"total"`
	Monthly   map[string]UsageBucket    `json:"monthly"`
	Models    map[string]*ModelUsage    `json:"models"`
	Providers map[string]*ProviderUsage `json:"providers"`
}

// NewUsageReport returns an empty report with initialized maps.
func NewUsageReport() *UsageReport {
	return &UsageReport{
		Monthly:   make(map[string]UsageBucket),
		Models:    make(map[string]*ModelUsage),
		Providers: make(map[string]*ProviderUsage),
	}
}

// Add folds one call recorded in month (YYYY-MM) into every bucket.
func (r *UsageReport) Add(rec UsageRecord, month string) {
	r.Total.Add(rec.PromptTokens, rec.CompletionTokens)
	addMonthly(r.Monthly, month, rec)

	model, ok := r.Models[rec.Model]
	if !ok {
		model = &ModelUsage{Monthly: make(map[string]UsageBucket)}
		r.Models[rec.Model] = model
	}
	model.Total.Add(rec.PromptTokens, rec.CompletionTokens)
	addMonthly(model.Monthly, month, rec)

	provider, ok := r.Providers[rec.Provider]
	if !ok {
		provider = &ProviderUsage{
			Monthly: make(map[string]UsageBucket),
			Models:  make(map[string]*ModelUsage),
		}
		r.Providers[rec.Provider] = provider
	}
	provider.Total.Add(rec.PromptTokens, rec.CompletionTokens)
	addMonthly(provider.Monthly, month, rec)

	pm, ok := provider.Models[rec.Model]
	if !ok {
		pm = &ModelUsage{Monthly: make(map[string]UsageBucket)}
		provider.Models[rec.Model] = pm
	}
	pm.Total.Add(rec.PromptTokens, rec.CompletionTokens)
	addMonthly(pm.Monthly, month, rec)
}

func addMonthly(m map[string]UsageBucket, month string, rec UsageRecord) {
	b := m[month]
	b.Add(rec.PromptTokens, rec.CompletionTokens)
	m[month] = b
}
