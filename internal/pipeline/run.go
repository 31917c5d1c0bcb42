// Package pipeline turns raw upstream listings into deduplicated rows in the
// shared events store: filter, map, consolidate, then batched idempotent
// upserts behind owner resolution and stale cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventsync/internal/domain"
	"example.com/eventsync/internal/metrics"
	"example.com/eventsync/internal/upstream"
)

// ErrNoActingUser means neither the preferred user nor the system business
// owner resolved to an existing identity. Writing under a fabricated identity
// would corrupt provenance, so the run aborts before any upsert.
var ErrNoActingUser = errors.New("no resolvable acting user")

// Fetcher retrieves the full upstream listing set.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]upstream.Event, error)
}

// Store is the backing-store contract the pipeline writes through. UpsertEvents
// is assumed idempotent under re-submission of the same logical event; that
// guarantee belongs to the store, not to this package.
type Store interface {
	Ready(ctx context.Context) error
	UserExists(ctx context.Context, userID string) (bool, error)
	BusinessOwner(ctx context.Context, businessID string) (string, error)
	DeleteStale(ctx context.Context, icon, kind string, before time.Time) (int64, error)
	UpsertEvents(ctx context.Context, rows []domain.EventRow) (inserted, updated int64, err error)
}

type Config struct {
	BusinessID      string
	PreferredUserID string
	BatchSize       int
	Country         string
	City            string
}

// RunStats summarizes one cycle.
type RunStats struct {
	Fetched      int
	Filtered     int
	Mapped       int
	Consolidated int
	Deleted      int64
	Inserted     int64
	Updated      int64
	Skipped      int64
}

// Pipeline executes one full ingest cycle: connectivity probe, owner
// resolution, stale cleanup, fetch, filter/map, consolidate, batched upsert.
type Pipeline struct {
	cfg     Config
	fetcher Fetcher
	store   Store
	mapper  *Mapper
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func New(cfg Config, fetcher Fetcher, store Store, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	p := &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		metrics: m,
		log:     logger.With().Str("component", "pipeline").Logger(),
		now:     time.Now,
	}
	p.mapper = &Mapper{
		Country: cfg.Country,
		City:    cfg.City,
		Now:     func() time.Time { return p.now() },
		Log:     p.log,
	}
	return p
}

// RunCycle runs the pipeline once. Only connectivity and attribution failures
// abort it; cleanup and per-batch upsert failures degrade to logged partial
// results, because the next scheduled cycle re-fetches everything anyway.
func (p *Pipeline) RunCycle(ctx context.Context) (RunStats, error) {
	var stats RunStats

	if err := p.store.Ready(ctx); err != nil {
		return stats, fmt.Errorf("store not reachable: %w", err)
	}

	actingUser, err := p.resolveActingUser(ctx)
	if err != nil {
		return stats, err
	}

	deleted, err := p.store.DeleteStale(ctx, domain.IconTicketing, domain.TypeEvent, p.now().Add(-domain.Retention))
	if err != nil {
		p.log.Warn().Err(err).Msg("stale cleanup failed, continuing")
	} else {
		stats.Deleted = deleted
		p.metrics.ObserveCleanup(deleted)
	}

	events, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch upstream: %w", err)
	}

	rows, ms := p.mapper.Apply(events)
	stats.Fetched, stats.Filtered, stats.Mapped = ms.Fetched, ms.Filtered, ms.Mapped

	rows = Consolidate(rows)
	stats.Consolidated = len(rows)
	p.metrics.ObserveStages(stats.Fetched, stats.Filtered, stats.Mapped, stats.Consolidated)

	for i := range rows {
		rows[i].BusinessID = p.cfg.BusinessID
		rows[i].CreatedBy = actingUser
	}

	stats.Inserted, stats.Updated, stats.Skipped = p.upsertBatches(ctx, rows)
	p.metrics.ObserveUpserts(stats.Inserted, stats.Updated, stats.Skipped)
	return stats, nil
}

// resolveActingUser prefers the configured user when it exists, then falls
// back to the system business's owner. No safe default exists beyond that.
func (p *Pipeline) resolveActingUser(ctx context.Context) (string, error) {
	if id := p.cfg.PreferredUserID; id != "" {
		ok, err := p.store.UserExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("verify preferred user: %w", err)
		}
		if ok {
			return id, nil
		}
		p.log.Warn().Str("user_id", id).Msg("preferred user not found, falling back to business owner")
	}
	owner, err := p.store.BusinessOwner(ctx, p.cfg.BusinessID)
	if err != nil {
		return "", fmt.Errorf("lookup business owner: %w", err)
	}
	if owner != "" {
		ok, err := p.store.UserExists(ctx, owner)
		if err != nil {
			return "", fmt.Errorf("verify business owner: %w", err)
		}
		if ok {
			return owner, nil
		}
	}
	return "", ErrNoActingUser
}

// upsertBatches submits rows in fixed-size batches. A failed batch is counted
// skipped and the rest still run; batches are independent and a skipped one is
// re-fetched next cycle.
func (p *Pipeline) upsertBatches(ctx context.Context, rows []domain.EventRow) (inserted, updated, skipped int64) {
	for i := 0; i < len(rows); i += p.cfg.BatchSize {
		j := min(i+p.cfg.BatchSize, len(rows))
		batch := rows[i:j]
		ins, upd, err := p.store.UpsertEvents(ctx, batch)
		if err != nil {
			p.log.Error().Err(err).Int("batch_start", i).Int("size", len(batch)).Msg("batch upsert failed, skipping batch")
			skipped += int64(len(batch))
			continue
		}
		inserted += ins
		updated += upd
		if extra := int64(len(batch)) - ins - upd; extra > 0 {
			skipped += extra
		}
	}
	return inserted, updated, skipped
}
