package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Calendar is the calendar collaborator the scheduler depends on.
// Every method may cross a network boundary and may fail.
type Calendar interface {
	// ListEvents returns events overlapping window, ordered by start time.
	ListEvents(ctx context.Context, window Interval, filter *EventFilter) ([]*Event, error)

	// CheckBusy returns the busy periods overlapping window for the given calendars.
	// An empty calendarIDs means the owner's primary calendar.
	CheckBusy(ctx context.Context, window Interval, calendarIDs []string) ([]BusyPeriod, error)

	// CreateEvent creates an event from draft.
	CreateEvent(ctx context.Context, draft *EventDraft) (*Event, error)

	// UpdateEvent applies patch to the event with id.
	UpdateEvent(ctx context.Context, id string, patch *EventPatch) (*Event, error)

	// DeleteEvent deletes the event with id.
	DeleteEvent(ctx context.Context, id string) error
}

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventConfirmed EventStatus = "confirmed"
	EventCancelled EventStatus = "cancelled"
)

// Event is a calendar event as returned by the Calendar collaborator.
type Event struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	ID          string      `json:"id"`
	CalendarID  string      `json:"calendar_id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location,omitempty"`
	Status      EventStatus `json:"status,omitempty"`
	Attendees   []string    `json:"attendees,omitempty"`
}

// Interval returns the event's time range.
func (e *Event) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// Busy converts the event into a busy period.
func (e *Event) Busy() BusyPeriod {
	return BusyPeriod{Interval: e.Interval(), EventID: e.ID, Title: e.Title, CalendarID: e.CalendarID}
}

// EventDraft describes an event that has not been created yet.
type EventDraft struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	CalendarID  string    `json:"calendar_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Interval returns the draft's time range.
func (d *EventDraft) Interval() Interval {
	return Interval{Start: d.Start, End: d.End}
}

// Validate checks the draft can be handed to a calendar.
func (d *EventDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	return d.Interval().Validate("dateTime")
}

// EventPatch is a partial update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Start       *time.Time `json:"start,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *EventPatch) IsEmpty() bool {
	return p == nil || (p.Title == nil && p.Description == nil && p.Location == nil &&
		p.Start == nil && p.End == nil && p.Attendees == nil)
}

// MovesEvent reports whether the patch changes the event's time range.
func (p *EventPatch) MovesEvent() bool {
	return p != nil && (p.Start != nil || p.End != nil)
}

// Apply returns a copy of e with the patch applied. The original is not modified.
func (p *EventPatch) Apply(e *Event) (*Event, error) {
	if e == nil {
		return nil, errors.New("nil event")
	}
	updated := *e
	updated.Attendees = append([]string(nil), e.Attendees...)
	if p == nil {
		return &updated, nil
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, &ValidationError{Field: "newTitle", Reason: "must not be empty"}
		}
		updated.Title = *p.Title
	}
	if p.Description != nil {
		updated.Description = *p.Description
	}
	if p.Location != nil {
		updated.Location = *p.Location
	}
	if p.Start != nil {
		updated.Start = *p.Start
	}
	if p.End != nil {
		updated.End = *p.End
	}
	if p.Attendees != nil {
		updated.Attendees = append([]string(nil), p.Attendees...)
	}
	if err := updated.Interval().Validate("dateTime"); err != nil {
		return nil, err
	}
	return &updated, nil
}

// EventFilter narrows ListEvents results.
type EventFilter struct {
	// TitleContains keeps events whose title contains the value, case-insensitively.
	TitleContains string `json:"title_contains,omitempty"`
	// Expression is a CEL boolean expression over the event fields.
	Expression string `json:"expression,omitempty"`
	// CalendarIDs restricts results to the given calendars.
	CalendarIDs []string `json:"calendar_ids,omitempty"`
	// IncludeCancelled returns cancelled events as well.
	IncludeCancelled bool `json:"include_cancelled,omitempty"`
}
