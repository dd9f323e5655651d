package schedule

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultGranularity is the step between candidate start times.
	DefaultGranularity = 30 * time.Minute
	// DefaultMaxResults caps the number of slots returned.
	DefaultMaxResults = 3
)

// Slot rationales.
const (
	RationaleAvailable = "Available"
	RationalePreferred = "Preferred time of day"
	RationaleEarly     = "Early start"
	RationaleLate      = "Late start"
	RationaleEarlier   = "Earlier alternative"
	RationaleLater     = "Later alternative"
)

// Slot is a scored candidate interval. Slots are recomputed per request.
type Slot struct {
	Interval
	Rationale string  `json:"rationale"`
	Score     float64 `json:"score"`
}

// HourBand matches start hours From..To inclusive.
type HourBand struct {
	From int
	To   int
}

func (b HourBand) contains(hour int) bool {
	return hour >= b.From && hour <= b.To
}

// Scoring holds the slot scoring weights.
type Scoring struct {
	PreferredBands  []HourBand
	Base            float64
	PreferredBonus  float64
	OffHoursPenalty float64
	ProximityWeight float64
	// EarlyBefore penalizes starts with hour < EarlyBefore.
	EarlyBefore int
	// LateAfter penalizes starts with hour > LateAfter.
	LateAfter int
}

// DefaultScoring favors 10-11 and 14-15 and penalizes starts before 9 or after 16.
func DefaultScoring() Scoring {
	return Scoring{
		Base:            0.85,
		PreferredBands:  []HourBand{{From: 10, To: 11}, {From: 14, To: 15}},
		PreferredBonus:  0.1,
		EarlyBefore:     9,
		LateAfter:       16,
		OffHoursPenalty: 0.1,
		ProximityWeight: 0.1,
	}
}

// SlotQuery describes one slot search.
type SlotQuery struct {
	// Anchor is the originally requested start when searching alternatives.
	Anchor       *time.Time
	Window       Interval
	WorkingHours WorkingHours
	Busy         []BusyPeriod
	Duration     time.Duration
	Granularity  time.Duration
	MaxResults   int
}

// SlotFinder enumerates, filters and ranks candidate slots.
type SlotFinder struct {
	scoring Scoring
}

// NewSlotFinder creates a SlotFinder with the given weights.
func NewSlotFinder(scoring Scoring) *SlotFinder {
	return &SlotFinder{scoring: scoring}
}

// FindSlots searches with DefaultScoring.
func FindSlots(duration time.Duration, window Interval, hours WorkingHours, busy []BusyPeriod, maxResults int) ([]Slot, error) {
	return NewSlotFinder(DefaultScoring()).Find(SlotQuery{
		Duration:     duration,
		Window:       window,
		WorkingHours: hours,
		Busy:         busy,
		MaxResults:   maxResults,
	})
}

// Find walks the window on a fixed grid anchored at local midnight and returns
// at most MaxResults slots ordered by score, then by start. An empty result is
// not an error.
func (f *SlotFinder) Find(q SlotQuery) ([]Slot, error) {
	if q.Duration <= 0 {
		return nil, &ValidationError{Field: "duration", Reason: "must be positive"}
	}
	if err := q.Window.Validate("searchWindow"); err != nil {
		return nil, err
	}
	if err := q.WorkingHours.Validate(); err != nil {
		return nil, err
	}
	step := q.Granularity
	if step <= 0 {
		step = DefaultGranularity
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	loc := q.WorkingHours.Loc()

	var slots []Slot
	for start := firstGridPoint(q.Window.Start, step, loc); start.Before(q.Window.End); start = start.Add(step) {
		candidate := Interval{Start: start, End: start.Add(q.Duration)}
		// Later starts end later too, so nothing after this fits the window.
		if candidate.End.After(q.Window.End) {
			break
		}
		if !q.WorkingHours.Fits(candidate) {
			continue
		}
		if HasConflict(candidate, q.Busy) {
			continue
		}
		score, rationale := f.score(start.In(loc), q.Anchor)
		slots = append(slots, Slot{Interval: candidate.In(loc), Score: score, Rationale: rationale})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	if len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

func (f *SlotFinder) score(start time.Time, anchor *time.Time) (float64, string) {
	s := f.scoring
	score := s.Base
	rationale := RationaleAvailable

	hour := start.Hour()
	switch {
	case f.preferred(hour):
		score += s.PreferredBonus
		rationale = RationalePreferred
	case hour < s.EarlyBefore:
		score -= s.OffHoursPenalty
		rationale = RationaleEarly
	case hour > s.LateAfter:
		score -= s.OffHoursPenalty
		rationale = RationaleLate
	}

	if anchor != nil {
		distance := math.Abs(start.Sub(*anchor).Hours())
		score += s.ProximityWeight / (1 + distance)
		if start.Before(*anchor) {
			rationale = RationaleEarlier
		} else {
			rationale = RationaleLater
		}
	}
	return math.Round(score*1e4) / 1e4, rationale
}

func (f *SlotFinder) preferred(hour int) bool {
	for _, band := range f.scoring.PreferredBands {
		if band.contains(hour) {
			return true
		}
	}
	return false
}

// firstGridPoint returns the first instant >= t on the step grid starting at
// local midnight of t's day.
func firstGridPoint(t time.Time, step time.Duration, loc *time.Location) time.Time {
	midnight := StartOfDay(t, loc)
	offset := t.Sub(midnight)
	steps := offset / step
	if offset%step != 0 {
		steps++
	}
	return midnight.Add(steps * step)
}
