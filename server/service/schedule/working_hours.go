package schedule

import (
	"fmt"
	"time"
)

// WorkingHours is the daily window in which meetings may be placed.
type WorkingHours struct {
	// Location resolves calendar days and hours. Nil means time.Local.
	Location *time.Location
	// Days lists the working weekdays. Empty means every day.
	Days      []time.Weekday
	StartHour int
	EndHour   int
}

// DefaultWorkingHours is 09:00-17:00, Monday to Friday.
func DefaultWorkingHours(loc *time.Location) WorkingHours {
	return WorkingHours{
		Location:  loc,
		StartHour: 9,
		EndHour:   17,
		Days: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

// Validate checks 0 <= StartHour < EndHour <= 24.
func (w WorkingHours) Validate() error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return &ValidationError{
			Field:  "workingHours",
			Reason: fmt.Sprintf("need 0 <= start < end <= 24, got %d-%d", w.StartHour, w.EndHour),
		}
	}
	return nil
}

// Loc returns the effective location.
func (w WorkingHours) Loc() *time.Location {
	if w.Location == nil {
		return time.Local
	}
	return w.Location
}

// IsWorkingDay reports whether t's local weekday is a working day.
func (w WorkingHours) IsWorkingDay(t time.Time) bool {
	if len(w.Days) == 0 {
		return true
	}
	wd := t.In(w.Loc()).Weekday()
	for _, d := range w.Days {
		if d == wd {
			return true
		}
	}
	return false
}

// Bounds returns the working interval on the calendar day of t.
// ok is false on non-working days.
func (w WorkingHours) Bounds(t time.Time) (Interval, bool) {
	if !w.IsWorkingDay(t) {
		return Interval{}, false
	}
	loc := w.Loc()
	y, m, d := t.In(loc).Date()
	return Interval{
		Start: time.Date(y, m, d, w.StartHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, w.EndHour, 0, 0, 0, loc),
	}, true
}

// Fits reports whether iv lies inside the working interval of its start day.
// The end bound is inclusive: a slot ending exactly at closing time fits.
func (w WorkingHours) Fits(iv Interval) bool {
	bounds, ok := w.Bounds(iv.Start)
	if !ok {
		return false
	}
	return !iv.Start.Before(bounds.Start) && !iv.End.After(bounds.End)
}

// DayWindow returns the working interval of t's day, or the whole local day
// when t falls on a non-working day.
func (w WorkingHours) DayWindow(t time.Time) Interval {
	if bounds, ok := w.Bounds(t); ok {
		return bounds
	}
	start := StartOfDay(t, w.Loc())
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
