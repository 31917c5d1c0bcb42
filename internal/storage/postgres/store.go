package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/eventsync/internal/dedupe"
	"example.com/eventsync/internal/domain"
)

// Store implements the pipeline's backing-store contract on Postgres.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store { return &Store{db: db} }

func (s *Store) Ready(ctx context.Context) error { return s.db.Ready(ctx) }

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// BusinessOwner returns the configured owner of a business, or "" when the
// business is missing or has no owner set.
func (s *Store) BusinessOwner(ctx context.Context, businessID string) (string, error) {
	var owner *string
	err := s.db.Pool.QueryRow(ctx, "SELECT owner_id FROM businesses WHERE id = $1", businessID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("business owner: %w", err)
	}
	if owner == nil {
		return "", nil
	}
	return *owner, nil
}

// DeleteStale removes previously ingested rows for this source whose start
// date is strictly before the cutoff.
func (s *Store) DeleteStale(ctx context.Context, icon, kind string, before time.Time) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx,
		"DELETE FROM listings WHERE icon = $1 AND type = $2 AND start_date < $3",
		icon, kind, before)
	if err != nil {
		return 0, fmt.Errorf("delete stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

const upsertSQL = `
INSERT INTO listings
  (dedupe_key, type, title, business_id, created_by, start_date, end_date,
   location, description, icon, image, price, rating, booking_url, booking_contact)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (dedupe_key) DO UPDATE SET
  title = EXCLUDED.title,
  start_date = EXCLUDED.start_date,
  end_date = EXCLUDED.end_date,
  location = EXCLUDED.location,
  description = EXCLUDED.description,
  image = EXCLUDED.image,
  price = EXCLUDED.price,
  booking_url = EXCLUDED.booking_url,
  booking_contact = EXCLUDED.booking_contact,
  updated_at = now()
RETURNING (xmax = 0) AS inserted`

// UpsertEvents writes one batch through the idempotent upsert, keyed on the
// same dedupe key the consolidator uses. The xmax check classifies each row as
// freshly inserted or an update of an existing one.
func (s *Store) UpsertEvents(ctx context.Context, rows []domain.EventRow) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	b := &pgx.Batch{}
	for i := range rows {
		r := &rows[i]
		b.Queue(upsertSQL,
			dedupe.RowKey(r), r.Type, r.Title, r.BusinessID, r.CreatedBy,
			r.StartDate, r.EndDate, r.Location, r.Description, r.Icon,
			r.Image, r.Price, r.Rating, r.BookingURL, r.BookingContact)
	}
	br := s.db.Pool.SendBatch(ctx, b)
	defer br.Close()

	var inserted, updated int64
	for range rows {
		var fresh bool
		if err := br.QueryRow().Scan(&fresh); err != nil {
			return inserted, updated, fmt.Errorf("upsert batch: %w", err)
		}
		if fresh {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}
