package domain

import "time"

// EventRow is the canonical, store-ready shape for an ingested event listing.
// Optional columns are pointers; nil maps to SQL NULL.
type EventRow struct {
	Title          string
	Type           string
	BusinessID     string
	CreatedBy      string
	StartDate      time.Time
	EndDate        *time.Time
	Location       *string
	Description    *string
	Icon           string
	Image          *string
	Price          *float64
	Rating         float64
	BookingURL     *string
	BookingContact *string
}

const (
	// TypeEvent discriminates event rows from other listing kinds in the shared store.
	TypeEvent = "event"

	// IconTicketing tags rows ingested from the ticketing API so cleanup can find them.
	IconTicketing = "ticketing"

	// DefaultRating: the upstream source carries no rating data.
	DefaultRating = 0

	// Retention is how long past-start rows are kept before cleanup purges them.
	Retention = 14 * 24 * time.Hour

	// MaxDescriptionLen caps synthesized descriptions, in runes.
	MaxDescriptionLen = 500
)

// IsStale reports whether a row whose event started at start should be purged at now.
// The boundary is strict: a row exactly Retention old is kept.
func IsStale(start, now time.Time) bool {
	return start.Before(now.Add(-Retention))
}
