package report

import (
	"bytes"
	"testing"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "零元整"},
		{100, "壹佰元整"},
		{1600, "壹仟陆佰元整"},
		{123.5, "壹佰贰拾叁元伍角"},
		{123.56, "壹佰贰拾叁元伍角陆分"},
		{1.05, "壹元零伍分"},
		{0.5, "零元伍角"},
		{1005, "壹仟零伍元整"},
		{10005, "壹万零伍元整"},
		{100000, "壹拾万元整"},
		{100010000, "壹亿零壹万元整"},
		{20000000, "贰仟万元整"},
		{45.28, "肆拾伍元贰角捌分"},
		{-12, "负壹拾贰元整"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInWords(tt.amount))
		})
	}
}

func TestSuggestedFileName(t *testing.T) {
	record := &entity.ExtractedInvoiceRecord{TotalAmount: 321, InvoiceDate: "2025-12-31"}
	assert.Equal(t, "餐饮费_321元_2025.12.31", SuggestedFileName("餐饮费", record))

	record = &entity.ExtractedInvoiceRecord{TotalAmount: 45.2849, InvoiceDate: "2025年6月1日"}
	assert.Equal(t, "火车票_45.28元_2025年6月1日", SuggestedFileName("火车票", record))

	record = &entity.ExtractedInvoiceRecord{TotalAmount: 10}
	assert.Equal(t, "其他_10元", SuggestedFileName("", record))

	assert.Equal(t, "餐饮费_321元_2025.12.31.pdf", WithExtension("餐饮费_321元_2025.12.31", "scan.PDF"))
}

func TestExcelExporter_WriteTravelReport(t *testing.T) {
	wb := TravelWorkbook{
		Title: "六月差旅",
		Report: entity.TravelReport{
			StartDate:           "2025-06-01",
			EndDate:             "2025-06-03",
			TotalDays:           3,
			AllowancePerDay:     100,
			TotalAllowance:      300,
			InterCityAmount:     500,
			AccommodationAmount: 800,
			AccommodationTax:    45.28,
			GrandTotalAmount:    1600,
			GrandTotalTax:       45.28,
			StandardCount:       1,
			StandardAmount:      800,
			NonStandardCount:    1,
			NonStandardAmount:   500,
			NonStandardDetails:  []string{"火车票 x1"},
		},
		Rows: []DetailRow{
			{FileName: "train.jpg", ExpenseType: "火车票", DocumentType: "火车票", InvoiceDate: "2025-06-01", TotalAmount: 500},
			{FileName: "hotel.pdf", ExpenseType: "住宿费", DocumentType: "发票", InvoiceDate: "2025-06-03", TotalAmount: 800, TaxAmount: 45.28},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(zap.NewNop()).WriteTravelReport(&buf, wb))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, detailSheet}, f.GetSheetList())

	cell := func(sheet, axis string) string {
		v, err := f.GetCellValue(sheet, axis)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "六月差旅", cell(summarySheet, "A1"))
	assert.Equal(t, "2025-06-01 ~ 2025-06-03", cell(summarySheet, "B2"))
	assert.Equal(t, "3", cell(summarySheet, "B3"))
	assert.Equal(t, "1600", cell(summarySheet, "B13"))
	assert.Equal(t, "壹仟陆佰元整", cell(summarySheet, "B14"))
	assert.Equal(t, "火车票 x1", cell(summarySheet, "B18"))

	assert.Equal(t, "文件名", cell(detailSheet, "A1"))
	assert.Equal(t, "hotel.pdf", cell(detailSheet, "A3"))
	assert.Equal(t, "45.28", cell(detailSheet, "H3"))
}
