package audit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func diningInvoice(amount float64, date string) *entity.ExtractedInvoiceRecord {
	return &entity.ExtractedInvoiceRecord{
		BuyerName:   knownBuyer,
		BuyerTaxID:  knownTaxID,
		ExpenseType: entity.ExpenseTypeDining,
		TotalAmount: amount,
		InvoiceDate: date,
	}
}

func TestEngine_GenerateDiningPlan(t *testing.T) {
	engine := NewDefaultEngine()

	t.Run("monday invoice plans for the previous friday", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(320, "2025-03-10"))

		assert.Equal(t, 450.0, plan.EstimatedAmount)
		assert.Equal(t, 3, plan.TotalPeople)
		assert.Equal(t, 2, plan.StaffCount)
		assert.Equal(t, 1, plan.GuestCount)
		assert.Equal(t, "2025-03-07", plan.ApplicationDate)
		assert.Equal(t, []string{
			"申请单日期: 2025-03-07 (基于发票日期 2025-03-10 前推工作日)",
			"预计金额: 450元 (实际金额 320元)",
			"人员分配: 总3人 (陪同2人, 招待1人)",
		}, plan.Notes)
	})

	t.Run("exact multiple rounds up", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(300, "2025-03-12"))
		assert.Equal(t, 450.0, plan.EstimatedAmount)
	})

	t.Run("single person has no staff", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(0, "2025-03-12"))
		assert.Equal(t, 150.0, plan.EstimatedAmount)
		assert.Equal(t, 1, plan.TotalPeople)
		assert.Equal(t, 0, plan.StaffCount)
		assert.Equal(t, 1, plan.GuestCount)
	})

	t.Run("staff is capped at three", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(1000, "2025-03-12"))
		assert.Equal(t, 1050.0, plan.EstimatedAmount)
		assert.Equal(t, 7, plan.TotalPeople)
		assert.Equal(t, 3, plan.StaffCount)
		assert.Equal(t, 4, plan.GuestCount)
	})

	t.Run("skips holidays and weekends", func(t *testing.T) {
		// 2024-02-12 is a holiday, 10th and 11th are the weekend
		plan := engine.GenerateDiningPlan(diningInvoice(100, "2024-02-13"))
		assert.Equal(t, "2024-02-09", plan.ApplicationDate)
	})

	t.Run("falls back to the invoice date after seven days", func(t *testing.T) {
		calendar := NewHolidayCalendar([]string{
			"2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07",
		})
		custom := NewEngine(DefaultCompanyRegistry(), calendar, entity.DefaultDiningPolicy())

		plan := custom.GenerateDiningPlan(diningInvoice(100, "2025-03-10"))
		assert.Equal(t, "2025-03-10", plan.ApplicationDate)
	})

	t.Run("unparsable date is kept", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(100, "三月十日"))
		assert.Equal(t, "三月十日", plan.ApplicationDate)
	})

	t.Run("plan invariants hold across amounts", func(t *testing.T) {
		for amount := 0.0; amount <= 3000; amount += 37.5 {
			plan := engine.GenerateDiningPlan(diningInvoice(amount, "2025-06-18"))

			assert.Greater(t, plan.EstimatedAmount, amount)
			assert.Zero(t, math.Mod(plan.EstimatedAmount, 150))
			assert.Equal(t, plan.TotalPeople, plan.StaffCount+plan.GuestCount)
			assert.GreaterOrEqual(t, plan.StaffCount, 0)
			assert.LessOrEqual(t, plan.StaffCount, 3)
		}
	})

	t.Run("negative amount plans for one person", func(t *testing.T) {
		plan := engine.GenerateDiningPlan(diningInvoice(-320, "2025-06-18"))

		assert.Equal(t, 150.0, plan.EstimatedAmount)
		assert.Equal(t, 1, plan.TotalPeople)
		assert.Zero(t, plan.StaffCount)
		assert.Equal(t, 1, plan.GuestCount)
	})

	t.Run("is idempotent", func(t *testing.T) {
		record := diningInvoice(612.4, "2024-05-06")
		assert.Equal(t, engine.GenerateDiningPlan(record), engine.GenerateDiningPlan(record))
	})
}

func TestEngine_ValidateDiningApplication(t *testing.T) {
	engine := NewDefaultEngine()
	invoice := diningInvoice(320, "2025-03-10")

	t.Run("compliant application", func(t *testing.T) {
		issues := engine.ValidateDiningApplication(&entity.DiningApplicationRecord{
			EstimatedAmount: 450,
			StaffCount:      2,
			GuestCount:      1,
			TotalPeople:     3,
			ApplicationDate: "2025-03-07",
		}, invoice)

		require.NotNil(t, issues)
		assert.Empty(t, issues)
	})

	t.Run("collects every violation", func(t *testing.T) {
		issues := engine.ValidateDiningApplication(&entity.DiningApplicationRecord{
			EstimatedAmount: 300,
			StaffCount:      0,
			GuestCount:      2,
			TotalPeople:     2,
			ApplicationDate: "2025-03-06",
		}, invoice)

		assert.Equal(t, []string{
			"申请金额必须大于发票金额（申请 300 / 发票 320）",
			"陪同人数应为 1-3 人（当前 0）",
			"总人数较少时，陪同人数建议 1-2 人（当前 0）",
			"申请单日期应为 2025-03-07（当前 2025-03-06）",
		}, issues)
	})

	t.Run("empty application", func(t *testing.T) {
		issues := engine.ValidateDiningApplication(&entity.DiningApplicationRecord{}, invoice)

		assert.Equal(t, []string{
			"请填写申请金额",
			"申请金额必须大于发票金额（申请 0 / 发票 320）",
			"陪同人数应为 1-3 人（当前 0）",
			"请填写陪同人数与招待人数",
			"请填写申请单日期",
		}, issues)
	})

	t.Run("amount not a multiple and inconsistent headcount", func(t *testing.T) {
		issues := engine.ValidateDiningApplication(&entity.DiningApplicationRecord{
			EstimatedAmount: 500,
			StaffCount:      2,
			GuestCount:      2,
			TotalPeople:     3,
			ApplicationDate: "2025-03-07",
		}, invoice)

		assert.Equal(t, []string{
			"申请金额需为 150 的整数倍（当前 500）",
			"陪同人数 + 招待人数应等于总人数（2+2 ≠ 3）",
		}, issues)
	})

	t.Run("large party needs at least two staff", func(t *testing.T) {
		issues := engine.ValidateDiningApplication(&entity.DiningApplicationRecord{
			EstimatedAmount: 1650,
			StaffCount:      1,
			GuestCount:      10,
			ApplicationDate: "2025-03-07",
		}, diningInvoice(1600, "2025-03-10"))

		assert.Equal(t, []string{"总人数较多时，陪同人数建议 2-3 人（当前 1）"}, issues)
	})
}

func TestEngine_ResolveStaffRange(t *testing.T) {
	engine := NewDefaultEngine()

	tests := []struct {
		total int
		label string
	}{
		{1, "总人数较少"},
		{6, "总人数较少"},
		{7, "总人数中等"},
		{9, "总人数中等"},
		{10, "总人数较多"},
		{40, "总人数较多"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.label, engine.resolveStaffRange(tt.total).Label, "total=%d", tt.total)
	}

	custom := NewEngine(DefaultCompanyRegistry(), DefaultHolidayCalendar(), entity.DiningPolicy{
		AmountMultiple: 150, BaseStaffMin: 1, BaseStaffMax: 3,
	})
	r := custom.resolveStaffRange(5)
	assert.Equal(t, "默认范围", r.Label)
	assert.Equal(t, 1, r.StaffMin)
	assert.Equal(t, 3, r.StaffMax)
}
