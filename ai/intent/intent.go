// Package intent defines the structured form of a scheduling request and the
// extractors that produce it from free text.
package intent

import (
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/slotsense/ai/timeparse"
)

// Operation is the single action an utterance asks for.
type Operation string

const (
	OpQuery             Operation = "query"
	OpSchedule          Operation = "schedule"
	OpUpdate            Operation = "update"
	OpCancel            Operation = "cancel"
	OpCheckAvailability Operation = "check_availability"
	OpEmailQuery        Operation = "email_query"
	OpEmailSearch       Operation = "email_search"
)

// Operations lists every known operation.
var Operations = []Operation{
	OpQuery, OpSchedule, OpUpdate, OpCancel, OpCheckAvailability, OpEmailQuery, OpEmailSearch,
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	for _, op := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Mutates reports whether o changes the calendar.
func (o Operation) Mutates() bool {
	return o == OpSchedule || o == OpUpdate || o == OpCancel
}

// Source tells which extractor produced an intent.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// ActionableConfidence is the single threshold below which an intent is
// flagged as a low-confidence parse. Flagged intents are still processed.
const ActionableConfidence = 0.6

// MaxDurationMinutes bounds an event length. Longer durations are dropped
// and asked for again.
const MaxDurationMinutes = 24 * 60

// Entity names, as reported in missing-field lists.
const (
	EntityTitle        = "title"
	EntityDateTime     = "dateTime"
	EntityDuration     = "duration"
	EntityCurrentTitle = "currentTitle"
	EntityNewTitle     = "newTitle"
	EntityLocation     = "location"
	EntityDescription  = "description"
	EntityAttendees    = "attendees"
	EntityDayPart      = "dayPart"
)

// Entities are the optional fields extracted from an utterance.
type Entities struct {
	DateTime     *time.Time        `json:"dateTime,omitempty"`
	Duration     *int              `json:"duration,omitempty"` // minutes
	Title        *string           `json:"title,omitempty"`
	CurrentTitle *string           `json:"currentTitle,omitempty"`
	NewTitle     *string           `json:"newTitle,omitempty"`
	Location     *string           `json:"location,omitempty"`
	Description  *string           `json:"description,omitempty"`
	DayPart      timeparse.DayPart `json:"dayPart,omitempty"`
	Attendees    []string          `json:"attendees,omitempty"`
	// DateOnly marks a DateTime that names a day without a time of day.
	// An explicit "at midnight" is not DateOnly.
	DateOnly bool `json:"dateOnly,omitempty"`
}

// Has reports whether the named entity is present.
func (e Entities) Has(name string) bool {
	switch name {
	case EntityTitle:
		return e.Title != nil
	case EntityDateTime:
		return e.DateTime != nil
	case EntityDuration:
		return e.Duration != nil
	case EntityCurrentTitle:
		return e.CurrentTitle != nil
	case EntityNewTitle:
		return e.NewTitle != nil
	case EntityLocation:
		return e.Location != nil
	case EntityDescription:
		return e.Description != nil
	case EntityAttendees:
		return len(e.Attendees) > 0
	case EntityDayPart:
		return e.DayPart != timeparse.DayPartNone
	}
	return false
}

// Count returns the number of present entities.
func (e Entities) Count() int {
	n := 0
	for _, name := range []string{
		EntityTitle, EntityDateTime, EntityDuration, EntityCurrentTitle, EntityNewTitle,
		EntityLocation, EntityDescription, EntityAttendees, EntityDayPart,
	} {
		if e.Has(name) {
			n++
		}
	}
	return n
}

// Merge returns e overlaid with newer. A field present in newer always wins.
func (e Entities) Merge(newer Entities) Entities {
	out := e.Clone()
	if newer.DateTime != nil {
		t := *newer.DateTime
		out.DateTime = &t
		out.DateOnly = newer.DateOnly
	}
	if newer.Duration != nil {
		d := *newer.Duration
		out.Duration = &d
	}
	out.Title = pick(out.Title, newer.Title)
	out.CurrentTitle = pick(out.CurrentTitle, newer.CurrentTitle)
	out.NewTitle = pick(out.NewTitle, newer.NewTitle)
	out.Location = pick(out.Location, newer.Location)
	out.Description = pick(out.Description, newer.Description)
	if newer.DayPart != timeparse.DayPartNone {
		out.DayPart = newer.DayPart
	}
	if len(newer.Attendees) > 0 {
		out.Attendees = append([]string(nil), newer.Attendees...)
	}
	return out
}

// Clone returns a deep copy.
func (e Entities) Clone() Entities {
	out := e
	if e.DateTime != nil {
		t := *e.DateTime
		out.DateTime = &t
	}
	if e.Duration != nil {
		d := *e.Duration
		out.Duration = &d
	}
	out.Title = clonePtr(e.Title)
	out.CurrentTitle = clonePtr(e.CurrentTitle)
	out.NewTitle = clonePtr(e.NewTitle)
	out.Location = clonePtr(e.Location)
	out.Description = clonePtr(e.Description)
	out.Attendees = append([]string(nil), e.Attendees...)
	if len(out.Attendees) == 0 {
		out.Attendees = nil
	}
	return out
}

// Reference returns the title that identifies an existing event:
// currentTitle for updates when set, title otherwise.
func (e Entities) Reference() string {
	if e.CurrentTitle != nil {
		return *e.CurrentTitle
	}
	if e.Title != nil {
		return *e.Title
	}
	return ""
}

// Intent is the parsed interpretation of one utterance.
type Intent struct {
	Operation  Operation `json:"operation"`
	Source     Source    `json:"source"`
	Query      string    `json:"query,omitempty"`
	Entities   Entities  `json:"entities"`
	Confidence float64   `json:"confidence"`
}

// LowConfidence reports whether the intent falls below ActionableConfidence
// or came from the keyword fallback.
func (i *Intent) LowConfidence() bool {
	return i.Source == SourceFallback || i.Confidence < ActionableConfidence
}

// Normalize enforces the intent invariants in place: confidence in [0,1],
// trimmed non-empty strings, durations within (0, MaxDurationMinutes], email-like attendees, and
// currentTitle/newTitle only on updates.
func (i *Intent) Normalize() {
	switch {
	case i.Confidence < 0:
		i.Confidence = 0
	case i.Confidence > 1:
		i.Confidence = 1
	}

	e := &i.Entities
	e.Title = cleanString(e.Title)
	e.CurrentTitle = cleanString(e.CurrentTitle)
	e.NewTitle = cleanString(e.NewTitle)
	e.Location = cleanString(e.Location)
	e.Description = cleanString(e.Description)
	if e.DateTime == nil {
		e.DateOnly = false
	}
	if e.Duration != nil && (*e.Duration <= 0 || *e.Duration > MaxDurationMinutes) {
		e.Duration = nil
	}
	e.Attendees = cleanAttendees(e.Attendees)

	if i.Operation != OpUpdate {
		if i.Operation == OpCancel && e.Title == nil {
			e.Title = e.CurrentTitle
		}
		e.CurrentTitle = nil
		e.NewTitle = nil
	}
}

var emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)

func cleanAttendees(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if !emailRe.MatchString(a) {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Join(strings.Fields(strings.Trim(strings.TrimSpace(*s), `"'“”`)), " ")
	if v == "" {
		return nil
	}
	return &v
}

func pick(old, newer *string) *string {
	if newer != nil {
		return clonePtr(newer)
	}
	return old
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// String returns a pointer to s, for building entities.
func String(s string) *string {
	return &s
}

// Minutes returns a pointer to m, for building entities.
func Minutes(m int) *int {
	return &m
}

// Time returns a pointer to t, for building entities.
func Time(t time.Time) *time.Time {
	return &t
}
