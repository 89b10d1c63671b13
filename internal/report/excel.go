package report

import (
	"fmt"
	"io"

	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	summarySheet = "汇总"
	detailSheet  = "明细"
)

// DetailRow is one reportable document in the detail sheet.
type DetailRow struct {
	FileName      string
	SuggestedName string
	ExpenseType   string
	DocumentType  string
	InvoiceDate   string
	BuyerName     string
	TotalAmount   float64
	TaxAmount     float64
	RefundStatus  string
}

// TravelWorkbook is the content of a travel report export.
type TravelWorkbook struct {
	Title  string
	Report entity.TravelReport
	Rows   []DetailRow
}

// ExcelExporter renders travel reports as XLSX workbooks
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// WriteTravelReport writes the workbook to w.
func (e *ExcelExporter) WriteTravelReport(w io.Writer, wb TravelWorkbook) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("failed to create detail sheet: %w", err)
	}

	e.fillSummary(f, wb)
	e.fillDetails(f, wb.Rows)
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Travel report exported",
		zap.String("title", wb.Title),
		zap.Int("rows", len(wb.Rows)))
	return nil
}

func (e *ExcelExporter) fillSummary(f *excelize.File, wb TravelWorkbook) {
	r := wb.Report
	rows := [][]any{
		{wb.Title},
		{"出差日期", r.StartDate + " ~ " + r.EndDate},
		{"出差天数", r.TotalDays},
		{"补助标准(元/天)", r.AllowancePerDay},
		{"出差补助", r.TotalAllowance},
		{},
		{"类别", "金额", "税额"},
		{"城际交通", r.InterCityAmount, r.InterCityTax},
		{"市内交通", r.IntraCityAmount, r.IntraCityTax},
		{"住宿费", r.AccommodationAmount, r.AccommodationTax},
		{"培训费", r.TrainingAmount, r.TrainingTax},
		{"餐饮费", r.DiningAmount, r.DiningTax},
		{"合计", r.GrandTotalAmount, r.GrandTotalTax},
		{"合计(大写)", AmountInWords(r.GrandTotalAmount)},
		{},
		{"标准发票", r.StandardCount, r.StandardAmount},
		{"非标准凭证", r.NonStandardCount, r.NonStandardAmount},
	}
	for _, detail := range r.NonStandardDetails {
		rows = append(rows, []any{"", detail})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			e.logger.Warn("Failed to set summary row", zap.Int("row", i+1), zap.Error(err))
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "C", 28)
}

func (e *ExcelExporter) fillDetails(f *excelize.File, rows []DetailRow) {
	headers := []any{"文件名", "建议文件名", "费用类型", "凭证类型", "日期", "购买方", "金额", "税额", "退票状态"}
	_ = f.SetSheetRow(detailSheet, "A1", &headers)

	for i, row := range rows {
		values := []any{
			row.FileName,
			row.SuggestedName,
			row.ExpenseType,
			row.DocumentType,
			row.InvoiceDate,
			row.BuyerName,
			row.TotalAmount,
			row.TaxAmount,
			row.RefundStatus,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(detailSheet, cell, &values); err != nil {
			e.logger.Warn("Failed to set detail row", zap.Int("row", i+2), zap.Error(err))
		}
	}
	_ = f.SetColWidth(detailSheet, "A", "B", 32)
	_ = f.SetColWidth(detailSheet, "C", "I", 14)
}
