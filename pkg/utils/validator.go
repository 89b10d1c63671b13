package utils

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	taxIDPattern      = regexp.MustCompile(`^[0-9A-HJ-NPQRTUWXY]{2}\d{6}[0-9A-HJ-NPQRTUWXY]{10}$`)
	controlCharacters = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	nonPrintableASCII = regexp.MustCompile(`[^\x20-\x7E]`)
)

// ValidateTaxID validates a unified social credit code (18 characters)
func ValidateTaxID(taxID string) error {
	if len(taxID) != 18 {
		return fmt.Errorf("tax ID must be 18 characters: %s", taxID)
	}
	if !taxIDPattern.MatchString(taxID) {
		return fmt.Errorf("tax ID has invalid characters: %s", taxID)
	}
	return nil
}

// ValidateDate validates a YYYY-MM-DD calendar date
func ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}

// ValidateAmount validates a non-negative finite amount
func ValidateAmount(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount must be non-negative: %.2f", amount)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlCharacters.ReplaceAllString(s, "")
}

// SanitizeAPIKey keeps printable ASCII only
func SanitizeAPIKey(key string) string {
	return strings.TrimSpace(nonPrintableASCII.ReplaceAllString(key, ""))
}
