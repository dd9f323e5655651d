package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Oracle answers busy-time questions. It is the only place the scheduler
// reads availability from the calendar.
type Oracle struct {
	calendar    Calendar
	calendarIDs []string
	timeout     time.Duration
	filter      string
}

// NewOracle wraps cal. Each CheckBusy call is bounded by timeout.
func NewOracle(cal Calendar, timeout time.Duration, calendarIDs ...string) *Oracle {
	return &Oracle{calendar: cal, timeout: timeout, calendarIDs: calendarIDs}
}

// WithFilter restricts busy time to events matching the CEL expression.
// Busy periods are then derived from ListEvents instead of CheckBusy.
func (o *Oracle) WithFilter(expr string) *Oracle {
	o.filter = expr
	return o
}

// Busy returns the busy periods overlapping window, sorted by start.
// Malformed periods reported by the calendar are dropped.
func (o *Oracle) Busy(ctx context.Context, window Interval) ([]BusyPeriod, error) {
	if err := window.Validate("window"); err != nil {
		return nil, err
	}

	var busy []BusyPeriod
	err := Call(ctx, "checkBusy", o.timeout, func(ctx context.Context) error {
		if o.filter == "" {
			var err error
			busy, err = o.calendar.CheckBusy(ctx, window, o.calendarIDs)
			return err
		}
		events, err := o.calendar.ListEvents(ctx, window, &EventFilter{Expression: o.filter, CalendarIDs: o.calendarIDs})
		if err != nil {
			return err
		}
		busy = make([]BusyPeriod, 0, len(events))
		for _, e := range events {
			if e.Status != EventCancelled {
				busy = append(busy, e.Busy())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	valid := make([]BusyPeriod, 0, len(busy))
	for _, b := range busy {
		if err := b.Validate("busyPeriod"); err != nil {
			slog.Warn("dropping malformed busy period", "event_id", b.EventID, "error", err)
			continue
		}
		valid = append(valid, b)
	}
	SortBusy(valid)
	return valid, nil
}
