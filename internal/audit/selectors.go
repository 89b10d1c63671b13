package audit

import (
	"sort"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// NonDiningNotice is shown when an audit batch holds invoices that belong in
// the travel flow.
const NonDiningNotice = "未检测到餐饮票、住宿票或招待费申请单。如需差旅报销，请移至「差旅费批量报销」页面。"

// FilterItems narrows items by filter and optionally moves items with issues
// to the front, keeping the original order otherwise.
func FilterItems(items []*entity.BatchItem, filter entity.AuditFilter, issuesFirst bool) []*entity.BatchItem {
	out := make([]*entity.BatchItem, 0, len(items))
	for _, item := range items {
		switch filter {
		case entity.FilterError:
			if item.Status != entity.ItemStatusError {
				continue
			}
		case entity.FilterSuccess:
			if item.Status != entity.ItemStatusSuccess {
				continue
			}
		case entity.FilterDining:
			if item.Result == nil || item.Result.Category != entity.CategoryDining {
				continue
			}
		}
		out = append(out, item)
	}
	if issuesFirst {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].HasIssue() && !out[j].HasIssue()
		})
	}
	return out
}

// Paginate returns the 1-based page of items.
func Paginate(items []*entity.BatchItem, page, pageSize int) []*entity.BatchItem {
	if page < 1 || pageSize < 1 {
		return []*entity.BatchItem{}
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []*entity.BatchItem{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

// BuildStats counts items by state.
func BuildStats(items []*entity.BatchItem) entity.AuditStats {
	stats := entity.AuditStats{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case entity.ItemStatusPending, entity.ItemStatusProcessing:
			stats.Processing++
		case entity.ItemStatusSuccess:
			stats.Success++
		case entity.ItemStatusError:
			stats.ErrorCount++
		}
		if item.Result != nil && item.Result.Category == entity.CategoryDining {
			stats.DiningCount++
		}
		if item.HasIssue() {
			stats.IssueCount++
		}
	}
	return stats
}

// BuildNonDiningNotice returns NonDiningNotice when a processed invoice is
// neither dining nor accommodation.
func BuildNonDiningNotice(items []*entity.BatchItem) string {
	for _, item := range items {
		if item.Status != entity.ItemStatusSuccess || item.Result == nil {
			continue
		}
		switch item.Result.Category {
		case entity.CategoryDining, entity.CategoryAccommodation:
			continue
		}
		return NonDiningNotice
	}
	return ""
}

// NoticeOnly reports whether the batch has finished and the notice is all
// there is to show.
func NoticeOnly(items []*entity.BatchItem, notice string) bool {
	if len(items) == 0 || notice == "" {
		return false
	}
	for _, item := range items {
		switch item.Status {
		case entity.ItemStatusPending, entity.ItemStatusProcessing:
			return false
		}
		if item.IsDiningApplication() {
			return false
		}
		if item.Status == entity.ItemStatusSuccess && item.Result != nil {
			switch item.Result.Category {
			case entity.CategoryDining, entity.CategoryAccommodation:
				return false
			}
		}
	}
	return true
}
