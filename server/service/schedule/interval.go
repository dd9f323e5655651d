package schedule

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds an interval, rejecting empty and inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate("interval"); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate returns a ValidationError naming field unless Start < End.
func (iv Interval) Validate(field string) error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return &ValidationError{Field: field, Reason: "start and end are required"}
	}
	if !iv.Start.Before(iv.End) {
		return &ValidationError{Field: field, Reason: "start must be before end"}
	}
	return nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}

// Contains reports whether t lies in [Start, End).
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// In returns the interval with both ends expressed in loc.
func (iv Interval) In(loc *time.Location) Interval {
	return Interval{Start: iv.Start.In(loc), End: iv.End.In(loc)}
}

// BusyPeriod is a committed interval reported by the calendar. It is read-only.
type BusyPeriod struct {
	Interval
	EventID    string `json:"event_id,omitempty"`
	Title      string `json:"title,omitempty"`
	CalendarID string `json:"calendar_id,omitempty"`
}

// SortBusy orders busy periods by start, then end.
func SortBusy(busy []BusyPeriod) {
	sort.SliceStable(busy, func(i, j int) bool {
		if !busy[i].Start.Equal(busy[j].Start) {
			return busy[i].Start.Before(busy[j].Start)
		}
		return busy[i].End.Before(busy[j].End)
	})
}
