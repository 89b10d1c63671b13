package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name   string
		record entity.ExtractedInvoiceRecord
		want   entity.ExpenseCategory
	}{
		{
			name:   "explicit accommodation expense type",
			record: entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeAccommodation},
			want:   entity.CategoryAccommodation,
		},
		{
			name:   "explicit dining expense type wins over hotel items",
			record: entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeDining, Items: []string{"酒店客房"}},
			want:   entity.CategoryDining,
		},
		{
			name:   "accommodation keyword checked before dining keyword",
			record: entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeOther, Items: []string{"*餐饮服务*早餐", "*住宿服务*房费"}},
			want:   entity.CategoryAccommodation,
		},
		{
			name:   "dining keyword in items",
			record: entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeOther, Items: []string{"*餐饮服务*餐费"}},
			want:   entity.CategoryDining,
		},
		{
			name:   "no keyword",
			record: entity.ExtractedInvoiceRecord{ExpenseType: entity.ExpenseTypeTrain, Items: []string{"二等座"}},
			want:   entity.CategoryOther,
		},
		{
			name:   "no items",
			record: entity.ExtractedInvoiceRecord{},
			want:   entity.CategoryOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCategory(&tt.record))
		})
	}
}
