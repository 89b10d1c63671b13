package audit

import "github.com/garyjia/expense-audit/internal/domain/entity"

// ApplyDiningPairing sets DiningIssues on every dining invoice in the batch.
//
// The first pass counts processed dining invoices and dining applications.
// Only when there is exactly one of each does the second pass validate the
// invoice against the application; otherwise every dining invoice's issues
// are cleared to nil, so stale results never survive a batch change.
func (e *Engine) ApplyDiningPairing(items []*entity.BatchItem) {
	var (
		invoices     int
		applications int
		application  *entity.DiningApplicationRecord
	)
	for _, item := range items {
		switch {
		case item.IsDiningInvoice():
			invoices++
		case item.IsDiningApplication():
			applications++
			application = item.Application
		}
	}

	paired := invoices == 1 && applications == 1 && application != nil
	for _, item := range items {
		if item.Result == nil || item.Result.Category != entity.CategoryDining {
			continue
		}
		if !paired || item.Status != entity.ItemStatusSuccess {
			item.DiningIssues = nil
			continue
		}
		item.DiningIssues = e.ValidateDiningApplication(application, &item.Result.Data)
	}
}
