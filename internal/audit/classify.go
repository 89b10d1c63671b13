package audit

import (
	"strings"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Accommodation keywords are checked before dining keywords: hotel line items
// often mention meals.
var (
	accommodationKeywords = []string{"住宿", "房费", "客房", "酒店"}
	diningKeywords        = []string{"餐饮", "餐费", "饮食", "美食"}
)

// DetectCategory derives the audit category of a record.
func DetectCategory(record *entity.ExtractedInvoiceRecord) entity.ExpenseCategory {
	switch record.ExpenseType {
	case entity.ExpenseTypeAccommodation:
		return entity.CategoryAccommodation
	case entity.ExpenseTypeDining:
		return entity.CategoryDining
	}

	text := strings.ToLower(strings.Join(record.Items, " "))
	if containsAny(text, accommodationKeywords) {
		return entity.CategoryAccommodation
	}
	if containsAny(text, diningKeywords) {
		return entity.CategoryDining
	}
	return entity.CategoryOther
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
