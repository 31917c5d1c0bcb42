// Package dedupe derives the identity under which two listings count as the
// same real-world event within one run. The store's unique index on the same
// derivation makes re-runs idempotent across cycles too.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"example.com/eventsync/internal/domain"
)

// Key returns a stable hex key from (normalized title, start day in UTC,
// normalized location). Rows sharing a key must be merged, never written twice.
// The composite is hashed so the key has a fixed length regardless of input.
func Key(title string, start time.Time, location *string) string {
	loc := ""
	if location != nil {
		loc = *location
	}
	composite := domain.NormalizeText(title) + "|" + start.UTC().Format("2006-01-02") + "|" + domain.NormalizeText(loc)
	sum := sha256.Sum256([]byte(composite))
	return hex.EncodeToString(sum[:])
}

// RowKey is Key applied to a mapped row.
func RowKey(row *domain.EventRow) string {
	return Key(row.Title, row.StartDate, row.Location)
}
