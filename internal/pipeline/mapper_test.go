package pipeline

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"example.com/eventsync/internal/domain"
	"example.com/eventsync/internal/upstream"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMapper() *Mapper {
	return &Mapper{
		Country: "Denmark",
		City:    "Copenhagen",
		Now:     func() time.Time { return testNow },
		Log:     zerolog.Nop(),
	}
}

func cphEvent(name string) upstream.Event {
	return upstream.Event{
		ID:       1,
		Name:     name,
		StartsAt: "2026-06-10T19:00:00Z",
		Venue:    &upstream.Venue{Name: "Vega"},
		Locality: &upstream.Locality{Country: "Denmark", City: "Copenhagen"},
	}
}

func TestApplyFilters(t *testing.T) {
	m := newTestMapper()

	cases := []struct {
		name   string
		mutate func(*upstream.Event)
		kept   bool
	}{
		{"in scope", func(*upstream.Event) {}, true},
		{"wrong country", func(ev *upstream.Event) { ev.Locality.Country = "Sweden" }, false},
		{"country case insensitive", func(ev *upstream.Event) { ev.Locality.Country = "DENMARK" }, true},
		{"missing country kept", func(ev *upstream.Event) { ev.Locality.Country = "" }, true},
		{"wrong city", func(ev *upstream.Event) {
			ev.Locality.City = "Aarhus"
			ev.Venue = &upstream.Venue{Name: "Train"}
		}, false},
		{"city in venue text", func(ev *upstream.Event) {
			ev.Locality.City = ""
			ev.Venue.Address1 = "Enghavevej 40, Copenhagen V"
		}, true},
		{"past event", func(ev *upstream.Event) { ev.StartsAt = "2026-05-01T19:00:00Z" }, false},
		{"unparseable start", func(ev *upstream.Event) { ev.StartsAt = "soon" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := cphEvent("Jazz Night")
			tc.mutate(&ev)
			rows, _ := m.Apply([]upstream.Event{ev})
			if kept := len(rows) == 1; kept != tc.kept {
				t.Errorf("kept = %v, want %v", kept, tc.kept)
			}
		})
	}
}

func TestApplySkipsMalformed(t *testing.T) {
	m := newTestMapper()
	bad := cphEvent("   ")
	good := cphEvent("Jazz Night")

	rows, stats := m.Apply([]upstream.Event{bad, good})
	if len(rows) != 1 || rows[0].Title != "Jazz Night" {
		t.Fatalf("rows = %+v", rows)
	}
	if stats.Fetched != 2 || stats.Filtered != 2 || stats.Mapped != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMapEventFields(t *testing.T) {
	ev := cphEvent("Jazz Night")
	ev.EndsAt = "2026-06-10T22:00:00Z"
	ev.Description = "<p>An evening of <b>jazz</b></p>"
	ev.URL = "https://tickets.example.com/e/1"
	ev.Image = &upstream.Image{URL: "//cdn.example.com/1.jpg"}
	ev.Organiser = &upstream.Organiser{Name: "Vega", Email: "events@vega.dk"}
	ev.Tickets = []upstream.Ticket{
		{Price: 100},
		{Price: 50, Donation: true},
		{Price: 30, SoldOut: true},
	}

	m := newTestMapper()
	rows, _ := m.Apply([]upstream.Event{ev})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	row := rows[0]

	if row.Type != domain.TypeEvent || row.Icon != domain.IconTicketing {
		t.Errorf("type/icon = %q/%q", row.Type, row.Icon)
	}
	if !row.StartDate.Equal(time.Date(2026, 6, 10, 19, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", row.StartDate)
	}
	if row.EndDate == nil || !row.EndDate.Equal(time.Date(2026, 6, 10, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("end = %v", row.EndDate)
	}
	if row.Location == nil || *row.Location != "Vega, Copenhagen, Denmark" {
		t.Errorf("location = %v", row.Location)
	}
	if row.Description == nil || *row.Description != "An evening of jazz" {
		t.Errorf("description = %v", row.Description)
	}
	if row.Image == nil || *row.Image != "https://cdn.example.com/1.jpg" {
		t.Errorf("image = %v", row.Image)
	}
	// Donation and sold-out tiers are ignored, so 100 wins despite being highest.
	if row.Price == nil || *row.Price != 100 {
		t.Errorf("price = %v", row.Price)
	}
	if row.BookingURL == nil || *row.BookingURL != "https://tickets.example.com/e/1" {
		t.Errorf("booking url = %v", row.BookingURL)
	}
	if row.BookingContact == nil || *row.BookingContact != "events@vega.dk" {
		t.Errorf("booking contact = %v", row.BookingContact)
	}
	if row.BusinessID != "" || row.CreatedBy != "" {
		t.Errorf("attribution stamped too early: %q/%q", row.BusinessID, row.CreatedBy)
	}
}

func TestMapEventDescriptionFallback(t *testing.T) {
	ev := cphEvent("Jazz Night")
	ev.Categories = []upstream.Category{{Name: "Music"}, {Name: "Other"}}

	m := newTestMapper()
	rows, _ := m.Apply([]upstream.Event{ev})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Description == nil || *rows[0].Description != "Music" {
		t.Errorf("description = %v", rows[0].Description)
	}
}

func TestMapEventBadEndIsAbsent(t *testing.T) {
	ev := cphEvent("Jazz Night")
	ev.EndsAt = "whenever"

	m := newTestMapper()
	rows, _ := m.Apply([]upstream.Event{ev})
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].EndDate != nil {
		t.Errorf("end = %v, want nil", rows[0].EndDate)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2026, 6, 10, 19, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2026-06-10T19:00:00Z",
		"2026-06-10T19:00:00",
		"2026-06-10 19:00:00",
	} {
		got, err := parseTime(in)
		if err != nil {
			t.Errorf("parseTime(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseTime(""); err == nil {
		t.Error("empty timestamp should fail")
	}
}
