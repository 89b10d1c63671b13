// Package audit implements the deterministic reimbursement rules: expense
// classification, compliance checks, dining-application reconciliation,
// travel-report aggregation and travel batch validation.
//
// Everything in this package is pure. Reference data (company tax registry,
// holiday calendar, dining policy) is injected through Engine and never
// mutated after construction.
package audit

import (
	"sort"
	"time"
)

// CompanyRegistry maps buyer company names to their registered tax IDs.
type CompanyRegistry struct {
	taxIDs map[string]string
	names  []string
}

// NewCompanyRegistry copies entries into a read-only registry.
func NewCompanyRegistry(entries map[string]string) *CompanyRegistry {
	r := &CompanyRegistry{
		taxIDs: make(map[string]string, len(entries)),
		names:  make([]string, 0, len(entries)),
	}
	for name, taxID := range entries {
		r.taxIDs[name] = taxID
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// DefaultCompanyRegistry returns the built-in group companies.
func DefaultCompanyRegistry() *CompanyRegistry {
	return NewCompanyRegistry(map[string]string{
		"南京中交万正置业有限公司": "913201143027142012",
		"南京中交建设发展有限公司": "91320191MA20G3MJ1W",
		"南京中交置业投资有限公司": "91320111MA1YNFJM72",
		"南京中交置业有限公司":   "9132011130263843XM",
	})
}

// Lookup returns the expected tax ID for a buyer name.
func (r *CompanyRegistry) Lookup(name string) (string, bool) {
	taxID, ok := r.taxIDs[name]
	return taxID, ok
}

// Names returns the registered company names in sorted order.
func (r *CompanyRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered companies.
func (r *CompanyRegistry) Len() int {
	return len(r.names)
}

// HolidayCalendar lists public holidays that are not working days in
// addition to weekends.
type HolidayCalendar struct {
	dates map[string]struct{}
}

// NewHolidayCalendar builds a calendar from YYYY-MM-DD strings.
func NewHolidayCalendar(dates []string) *HolidayCalendar {
	c := &HolidayCalendar{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		c.dates[d] = struct{}{}
	}
	return c
}

// DefaultHolidayCalendar returns the built-in 2024 public holidays.
func DefaultHolidayCalendar() *HolidayCalendar {
	return NewHolidayCalendar([]string{
		"2024-01-01",
		"2024-02-10", "2024-02-11", "2024-02-12",
		"2024-04-04",
		"2024-05-01",
		"2024-06-10",
		"2024-09-17",
		"2024-10-01", "2024-10-02", "2024-10-03",
	})
}

// IsHoliday reports whether t is a configured holiday.
func (c *HolidayCalendar) IsHoliday(t time.Time) bool {
	_, ok := c.dates[formatDate(t)]
	return ok
}

// IsWorkingDay reports whether t is neither a weekend nor a holiday.
func (c *HolidayCalendar) IsWorkingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(t)
}

// Len returns the number of configured holidays.
func (c *HolidayCalendar) Len() int {
	return len(c.dates)
}
