package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventsync/internal/domain"
	"example.com/eventsync/internal/upstream"
)

// timeLayouts are the timestamp shapes the ticketing API has been seen to emit.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Mapper filters upstream listings down to the target market and normalizes
// the survivors into store-ready rows. Attribution fields are stamped later,
// once the acting user is resolved.
type Mapper struct {
	Country string
	City    string
	Now     func() time.Time
	Log     zerolog.Logger
}

// MapStats counts rows at each mapping stage, for run logging.
type MapStats struct {
	Fetched  int
	Filtered int
	Mapped   int
}

// Apply returns the valid rows plus stage counters. A listing that fails to
// map is logged and skipped; it never aborts the run.
func (m *Mapper) Apply(events []upstream.Event) ([]domain.EventRow, MapStats) {
	stats := MapStats{Fetched: len(events)}
	now := m.Now()
	rows := make([]domain.EventRow, 0, len(events))
	for i := range events {
		ev := &events[i]
		if !m.inScope(ev, now) {
			continue
		}
		stats.Filtered++
		row, err := mapEvent(ev)
		if err != nil {
			m.Log.Warn().Err(err).Int64("upstream_id", ev.ID).Msg("skipping malformed listing")
			continue
		}
		stats.Mapped++
		rows = append(rows, row)
	}
	return rows, stats
}

// inScope holds when the listing is in the target country (if stated), starts
// now or later, and mentions the target city somewhere in its locality or
// venue text.
func (m *Mapper) inScope(ev *upstream.Event, now time.Time) bool {
	if ev.Locality != nil && ev.Locality.Country != "" && !strings.EqualFold(ev.Locality.Country, m.Country) {
		return false
	}
	start, err := parseTime(ev.StartsAt)
	if err != nil || start.Before(now) {
		return false
	}
	return m.inCity(ev)
}

// inCity matches the city name against the structured locality first, then
// against assembled venue/address text, to tolerate listings with missing
// locality data.
func (m *Mapper) inCity(ev *upstream.Event) bool {
	city := strings.ToLower(m.City)
	if ev.Locality != nil && ev.Locality.City != "" && strings.Contains(strings.ToLower(ev.Locality.City), city) {
		return true
	}
	var parts []string
	if ev.Venue != nil {
		parts = append(parts, ev.Venue.Name, ev.Venue.Address1, ev.Venue.Address2)
	}
	if ev.Locality != nil {
		parts = append(parts, ev.Locality.City, ev.Locality.Province)
	}
	return strings.Contains(strings.ToLower(strings.Join(parts, " ")), city)
}

func mapEvent(ev *upstream.Event) (domain.EventRow, error) {
	title := strings.TrimSpace(ev.Name)
	if title == "" {
		return domain.EventRow{}, fmt.Errorf("empty title")
	}
	start, err := parseTime(ev.StartsAt)
	if err != nil {
		return domain.EventRow{}, fmt.Errorf("start date %q: %w", ev.StartsAt, err)
	}

	row := domain.EventRow{
		Title:     title,
		Type:      domain.TypeEvent,
		StartDate: start,
		Icon:      domain.IconTicketing,
		Rating:    domain.DefaultRating,
	}
	// An unparseable end is treated as absent, not a rejection.
	if end, err := parseTime(ev.EndsAt); err == nil {
		row.EndDate = &end
	}

	var venue, city, country, image string
	if ev.Venue != nil {
		venue = ev.Venue.Name
	}
	if ev.Locality != nil {
		city, country = ev.Locality.City, ev.Locality.Country
	}
	row.Location = domain.Location(venue, city, country)

	cats := make([]string, 0, len(ev.Categories))
	for _, c := range ev.Categories {
		cats = append(cats, c.Name)
	}
	row.Description = domain.Summary(ev.Description, cats)

	if ev.Image != nil {
		image = ev.Image.URL
	}
	row.Image = domain.NormalizeImageURL(image)
	row.Price = lowestPrice(ev.Tickets)

	if u := strings.TrimSpace(ev.URL); u != "" {
		row.BookingURL = &u
	}
	if ev.Organiser != nil {
		if e := strings.TrimSpace(ev.Organiser.Email); e != "" {
			row.BookingContact = &e
		}
	}
	return row, nil
}

// lowestPrice is the minimum over tiers that are not donations, not sold out,
// and carry a positive price. Nil when no tier qualifies.
func lowestPrice(tickets []upstream.Ticket) *float64 {
	var best *float64
	for _, t := range tickets {
		if t.Donation || t.SoldOut || t.Price <= 0 {
			continue
		}
		if best == nil || t.Price < *best {
			p := t.Price
			best = &p
		}
	}
	return best
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
