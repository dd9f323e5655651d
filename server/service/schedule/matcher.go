package schedule

import (
	"sort"
	"strings"
)

// MatchKind tells how an event title matched the query.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
)

// EventMatch is one title match candidate.
type EventMatch struct {
	Event *Event    `json:"event"`
	Kind  MatchKind `json:"kind"`
}

// MatchTitle finds events referred to by query in two passes: case-insensitive
// exact matches first, then substring matches in either direction. All matches
// are returned so callers can tell a single hit from an ambiguous one.
// Within each pass events keep their input order.
func MatchTitle(query string, events []*Event) []EventMatch {
	q := normalizeTitle(query)
	if q == "" {
		return nil
	}

	var exact, partial []EventMatch
	for _, e := range events {
		title := normalizeTitle(e.Title)
		if title == "" {
			continue
		}
		switch {
		case title == q:
			exact = append(exact, EventMatch{Event: e, Kind: MatchExact})
		case strings.Contains(title, q) || strings.Contains(q, title):
			partial = append(partial, EventMatch{Event: e, Kind: MatchPartial})
		}
	}
	return append(exact, partial...)
}

// NearbyTitles returns up to limit distinct titles from events, earliest first.
func NearbyTitles(events []*Event, limit int) []string {
	sorted := append([]*Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	seen := make(map[string]struct{})
	var titles []string
	for _, e := range sorted {
		key := normalizeTitle(e.Title)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, e.Title)
		if limit > 0 && len(titles) >= limit {
			break
		}
	}
	return titles
}

func normalizeTitle(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'“”‘’`)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
