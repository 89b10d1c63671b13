package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/expense-audit/internal/audit"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func TestParseInvoiceText(t *testing.T) {
	registry := audit.DefaultCompanyRegistry()

	t.Run("dining invoice from a known buyer", func(t *testing.T) {
		lines := []string{
			"江苏增值税普通发票",
			"开票日期: 2025 年 3 月 10 日",
			"购买方 名称: 南京中交万正置业有限公司",
			"*餐饮服务*餐费 1 301.89",
			"税额 18.11",
			"价税合计(大写) 叁佰贰拾元整 (小写) ¥320.00",
		}
		rec := ParseInvoiceText(lines, registry, fixedNow)

		assert.Equal(t, entity.InvoiceTypeGeneral, rec.InvoiceType)
		assert.Equal(t, "2025-03-10", rec.InvoiceDate)
		assert.Equal(t, 320.0, rec.TotalAmount)
		assert.Equal(t, 18.11, rec.TaxAmount)
		assert.Equal(t, "南京中交万正置业有限公司", rec.BuyerName)
		assert.Equal(t, "913201143027142012", rec.BuyerTaxID)
		assert.Equal(t, []string{"*餐饮服务*餐费 1 301.89"}, rec.Items)
		assert.Equal(t, "N/A", rec.TaxRate)
		assert.Equal(t, entity.ExpenseTypeOther, rec.ExpenseType)
	})

	t.Run("unknown buyer with tax id", func(t *testing.T) {
		lines := []string{
			"增值税专用发票",
			"某某酒店管理有限公司 91110000MA01ABCD2X",
			"住宿费 2 晚",
			"合计 ¥1,060.00",
		}
		rec := ParseInvoiceText(lines, registry, fixedNow)

		assert.Equal(t, entity.InvoiceTypeSpecial, rec.InvoiceType)
		assert.Equal(t, "未识别 (请人工核对)", rec.BuyerName)
		assert.Equal(t, "91110000MA01ABCD2X", rec.BuyerTaxID)
		assert.Equal(t, 1060.0, rec.TotalAmount)
		assert.Equal(t, entity.ExpenseTypeAccommodation, rec.ExpenseType)
		assert.Equal(t, "2025-06-18", rec.InvoiceDate)
		assert.Len(t, rec.Items, 2)
	})

	t.Run("train ticket", func(t *testing.T) {
		rec := ParseInvoiceText([]string{"南京南 G7 上海虹桥 高铁 二等座 ¥139.50"}, registry, fixedNow)

		assert.Equal(t, entity.ExpenseTypeTrain, rec.ExpenseType)
		assert.Equal(t, 139.5, rec.TotalAmount)
	})

	t.Run("nothing recognizable", func(t *testing.T) {
		rec := ParseInvoiceText(nil, nil, fixedNow)

		assert.Equal(t, entity.InvoiceTypeOther, rec.InvoiceType)
		assert.Equal(t, "未识别 (请人工核对)", rec.BuyerName)
		assert.Equal(t, "未识别", rec.BuyerTaxID)
		assert.Equal(t, []string{"未识别明细"}, rec.Items)
		assert.Zero(t, rec.TotalAmount)
	})
}
