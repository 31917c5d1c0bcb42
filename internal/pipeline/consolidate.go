package pipeline

import (
	"example.com/eventsync/internal/dedupe"
	"example.com/eventsync/internal/domain"
)

// Consolidate collapses rows describing the same real-world event, keyed by
// the dedupe key. Output order follows first appearance; every merge rule is
// commutative, so field values are independent of input order.
func Consolidate(rows []domain.EventRow) []domain.EventRow {
	byKey := make(map[string]int, len(rows))
	out := make([]domain.EventRow, 0, len(rows))
	for i := range rows {
		key := dedupe.RowKey(&rows[i])
		j, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, rows[i])
			continue
		}
		merge(&out[j], &rows[i])
	}
	return out
}

// merge folds next into base: earliest start, latest end, longer description,
// lower price; image and booking URL keep the existing value unless missing.
// Every other field retains the first-seen value.
func merge(base, next *domain.EventRow) {
	if next.StartDate.Before(base.StartDate) {
		base.StartDate = next.StartDate
	}
	if next.EndDate != nil && (base.EndDate == nil || next.EndDate.After(*base.EndDate)) {
		base.EndDate = next.EndDate
	}
	if next.Description != nil && (base.Description == nil || len(*next.Description) > len(*base.Description)) {
		base.Description = next.Description
	}
	if base.Image == nil {
		base.Image = next.Image
	}
	if base.BookingURL == nil {
		base.BookingURL = next.BookingURL
	}
	if next.Price != nil && (base.Price == nil || *next.Price < *base.Price) {
		base.Price = next.Price
	}
}
