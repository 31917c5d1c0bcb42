package domain

import (
	"regexp"
	"strings"
)

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// NormalizeText lowercases s and collapses whitespace runs to single spaces.
// Dedupe keys are built from this form so cosmetic differences don't split events.
func NormalizeText(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}

// StripHTML drops markup and decodes common entities, returning single-spaced
// plain text.
func StripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Location assembles the display location from venue name, city and country, in
// that order, skipping empty parts. Returns nil when every part is empty.
func Location(venue, city, country string) *string {
	parts := make([]string, 0, 3)
	for _, p := range []string{venue, city, country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, ", ")
	return &s
}

// NormalizeImageURL absolutizes protocol-relative URLs; anything else passes
// through. Empty input returns nil.
func NormalizeImageURL(u string) *string {
	u = strings.TrimSpace(u)
	if u == "" {
		return nil
	}
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return &u
}

// genericCategories say nothing about an event and are excluded from
// description fallbacks.
var genericCategories = map[string]struct{}{
	"other":         {},
	"miscellaneous": {},
	"uncategorized": {},
}

// Summary derives the row description: the stripped HTML description capped at
// MaxDescriptionLen runes with a truncation marker, falling back to a
// bullet-joined list of non-generic category names. Nil when both yield nothing.
func Summary(html string, categories []string) *string {
	if s := StripHTML(html); s != "" {
		if r := []rune(s); len(r) > MaxDescriptionLen {
			s = string(r[:MaxDescriptionLen]) + "..."
		}
		return &s
	}
	kept := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, generic := genericCategories[strings.ToLower(c)]; generic {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}
	s := strings.Join(kept, " • ")
	return &s
}
