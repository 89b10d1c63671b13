package audit

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const day = 24 * time.Hour

// parseDate parses a YYYY-MM-DD string as a UTC calendar date.
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// formatAmount renders an amount the way reviewers read it: no trailing
// zeros, no exponent.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
