// Package timeparse resolves natural-language date and time expressions
// into absolute instants.
package timeparse

import (
	"sort"
	"strings"
	"time"
)

// DayPart is a coarse part of the day mentioned without a clock time.
type DayPart string

const (
	DayPartNone      DayPart = ""
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
)

var dayPartHours = map[DayPart][2]int{
	DayPartMorning:   {9, 12},
	DayPartAfternoon: {13, 17},
	DayPartEvening:   {17, 21},
}

// ParseDayPart maps free text such as "Afternoon" to a DayPart.
func ParseDayPart(s string) DayPart {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "morning":
		return DayPartMorning
	case "afternoon":
		return DayPartAfternoon
	case "evening", "tonight", "night":
		return DayPartEvening
	}
	return DayPartNone
}

// Span is a byte range [Start, End) of the input text.
type Span struct {
	Start int
	End   int
}

// Match is the temporal expression found in a text.
type Match struct {
	Time    time.Time
	DayPart DayPart
	// Spans covers the substrings that contributed to Time.
	Spans   []Span
	HasDate bool
	HasTime bool
}

// Normalizer resolves expressions relative to a reference instant.
// Partially specified inputs are assembled from local calendar fields in
// the normalizer's location.
type Normalizer struct {
	loc       *time.Location
	workStart int
	workEnd   int
}

// New creates a Normalizer. Working hours decide whether an hour without
// am/pm ("at 3") means the afternoon.
func New(loc *time.Location, workStartHour, workEndHour int) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc, workStart: workStartHour, workEnd: workEndHour}
}

// Location returns the zone used for local fields.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize returns the instant described by text, or false when text holds
// no temporal expression. Date-only input resolves to local midnight.
func (n *Normalizer) Normalize(text string, ref time.Time) (time.Time, bool) {
	m, ok := n.Parse(text, ref)
	if !ok {
		return time.Time{}, false
	}
	return m.Time, true
}

// Parse is Normalize with details about what was recognized. When the text
// holds several date (or time) phrases, the earliest one wins.
func (n *Normalizer) Parse(text string, ref time.Time) (*Match, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	ref = ref.In(n.loc)

	date := earliestDate(n.findDates(text, ref))
	times := n.findTimes(text)
	part, partSpan := findDayPart(text)

	if date != nil && date.instant != nil {
		// An absolute instant already carries its own time of day.
		m := &Match{Time: date.instant.In(n.loc), Spans: []Span{date.span}, HasDate: true, HasTime: true}
		return m, true
	}

	clock := earliestTime(times, date)
	if date == nil && clock == nil && part == DayPartNone {
		return nil, false
	}

	m := &Match{DayPart: part}
	y, mo, d := ref.Date()
	if date != nil {
		y, mo, d = date.day.Date()
		m.HasDate = true
		m.Spans = append(m.Spans, date.span)
	}

	hour, minute := 0, 0
	switch {
	case clock != nil:
		hour, minute = n.resolveHour(clock, part), clock.minute
		m.HasTime = true
		m.Spans = append(m.Spans, clock.span)
	case part != DayPartNone:
		hour = dayPartHours[part][0]
		m.HasTime = true
	}
	if part != DayPartNone {
		m.Spans = append(m.Spans, partSpan)
	}

	m.Time = time.Date(y, mo, d, hour, minute, 0, 0, n.loc)
	sort.Slice(m.Spans, func(i, j int) bool { return m.Spans[i].Start < m.Spans[j].Start })
	return m, true
}

// DayPartWindow returns the [start, end) hours of part on the day of t.
func (n *Normalizer) DayPartWindow(t time.Time, part DayPart) (time.Time, time.Time, bool) {
	hours, ok := dayPartHours[part]
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := t.In(n.loc).Date()
	return time.Date(y, m, d, hours[0], 0, 0, 0, n.loc), time.Date(y, m, d, hours[1], 0, 0, 0, n.loc), true
}

// resolveHour turns a clock reading into a 24h hour.
func (n *Normalizer) resolveHour(c *clockMatch, part DayPart) int {
	hour := c.hour
	if c.meridiem != "" || hour >= 12 {
		return hour
	}
	if part == DayPartAfternoon || part == DayPartEvening {
		return hour + 12
	}
	// "at 3" during a 9-17 day means 15:00.
	if c.ambiguous && hour < n.workStart && hour+12 <= n.workEnd {
		return hour + 12
	}
	return hour
}

// Strip removes the given spans from text and collapses whitespace.
func Strip(text string, spans []Span) string {
	if len(spans) == 0 {
		return strings.Join(strings.Fields(text), " ")
	}
	sorted := append([]Span(nil), spans...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	last := 0
	for _, s := range sorted {
		if s.Start < last {
			if s.End > last {
				last = s.End
			}
			continue
		}
		b.WriteString(text[last:s.Start])
		b.WriteByte(' ')
		last = s.End
	}
	b.WriteString(text[last:])
	return strings.Join(strings.Fields(b.String()), " ")
}
