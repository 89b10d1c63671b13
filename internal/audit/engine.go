package audit

import "github.com/garyjia/expense-audit/internal/domain/entity"

// Engine applies the reimbursement rules with injected reference data.
// An Engine is safe for concurrent use.
type Engine struct {
	registry *CompanyRegistry
	calendar *HolidayCalendar
	dining   entity.DiningPolicy
}

// NewEngine creates a rules engine. Registry and calendar are required.
func NewEngine(registry *CompanyRegistry, calendar *HolidayCalendar, dining entity.DiningPolicy) *Engine {
	if registry == nil {
		panic("audit: nil company registry")
	}
	if calendar == nil {
		panic("audit: nil holiday calendar")
	}
	if dining.AmountMultiple <= 0 {
		dining.AmountMultiple = entity.DefaultDiningPolicy().AmountMultiple
	}
	return &Engine{
		registry: registry,
		calendar: calendar,
		dining:   dining,
	}
}

// NewDefaultEngine creates an engine with the built-in reference data.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultCompanyRegistry(), DefaultHolidayCalendar(), entity.DefaultDiningPolicy())
}

// Registry returns the engine's company registry.
func (e *Engine) Registry() *CompanyRegistry {
	return e.registry
}

// DiningPolicy returns the engine's dining rules.
func (e *Engine) DiningPolicy() entity.DiningPolicy {
	return e.dining
}
