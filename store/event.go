package store

import (
	"github.com/hrygo/slotsense/server/service/schedule"
)

// ErrNotFound is returned by drivers when no event has the given id.
var ErrNotFound = schedule.ErrNotFound

// DefaultCalendarID is used for events created without a calendar.
const DefaultCalendarID = "primary"

// Event is the persisted calendar event. Timestamps are unix seconds.
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Status      string
	Attendees   []string
	StartTs     int64
	EndTs       int64
	CreatedTs   int64
	UpdatedTs   int64
}

// FindEvent selects events. Nil fields do not filter.
type FindEvent struct {
	ID *string
	// StartBefore and EndAfter select events overlapping [EndAfter, StartBefore).
	StartBefore      *int64
	EndAfter         *int64
	TitleContains    *string
	CalendarIDs      []string
	IncludeCancelled bool
}

// UpdateEvent changes the non-nil fields of an event.
type UpdateEvent struct {
	ID          string
	Title       *string
	Description *string
	Location    *string
	Status      *string
	Attendees   *[]string
	StartTs     *int64
	EndTs       *int64
	UpdatedTs   int64
}

// DeleteEvent removes an event.
type DeleteEvent struct {
	ID string
}
