package scheduler

import (
	"time"

	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/server/service/mail"
	"github.com/hrygo/slotsense/server/service/schedule"
)

// Kind names the populated variant of a Decision.
type Kind string

const (
	KindNeedsFollowUp  Kind = "needs_follow_up"
	KindConflict       Kind = "conflict"
	KindReadyToCreate  Kind = "ready_to_create"
	KindReadyToUpdate  Kind = "ready_to_update"
	KindReadyToCancel  Kind = "ready_to_cancel"
	KindAmbiguousMatch Kind = "ambiguous_match"
	KindNotFound       Kind = "not_found"
	KindEvents         Kind = "events"
	KindAvailability   Kind = "availability"
	KindEmails         Kind = "emails"
	KindUnsupported    Kind = "unsupported"
)

// Decision is the outcome of one resolve turn. Exactly one of the variant
// fields matching Kind is set.
type Decision struct {
	Kind      Kind             `json:"kind"`
	Operation intent.Operation `json:"operation"`
	// Message is the human readable answer, including the next step when
	// the user has to reply.
	Message string `json:"message"`
	// ConversationID is set whenever the decision waits for a reply.
	ConversationID string  `json:"conversationId,omitempty"`
	LowConfidence  bool    `json:"lowConfidence,omitempty"`
	Confidence     float64 `json:"confidence"`
	// Committed is true when the calendar mutation was performed, false for
	// dry runs and read-only decisions.
	Committed bool `json:"committed"`

	FollowUp     *FollowUp     `json:"followUp,omitempty"`
	Conflict     *Conflict     `json:"conflict,omitempty"`
	Create       *Create       `json:"create,omitempty"`
	Update       *Update       `json:"update,omitempty"`
	Cancel       *Cancel       `json:"cancel,omitempty"`
	Ambiguous    *Ambiguous    `json:"ambiguous,omitempty"`
	NotFound     *NotFound     `json:"notFound,omitempty"`
	Events       *Events       `json:"events,omitempty"`
	Availability *Availability `json:"availability,omitempty"`
	Emails       *Emails       `json:"emails,omitempty"`
}

// AwaitsReply reports whether the user is expected to answer.
func (d *Decision) AwaitsReply() bool {
	return d.ConversationID != ""
}

// FollowUp asks for the first missing field. Suggestions are offered when
// the date is known but the time is not.
type FollowUp struct {
	Question      string          `json:"question"`
	MissingFields []string        `json:"missingFields"`
	Suggestions   []schedule.Slot `json:"suggestions,omitempty"`
}

// Conflict reports the busy periods hit by the requested interval and the
// proposed alternatives, best first. Alternatives may be empty.
type Conflict struct {
	Proposed     schedule.Interval     `json:"proposed"`
	Conflicts    []schedule.BusyPeriod `json:"conflicts"`
	Alternatives []schedule.Slot       `json:"alternatives"`
}

// Create is the event to create. Event is the created event once committed.
type Create struct {
	Draft *schedule.EventDraft `json:"draft"`
	Event *schedule.Event      `json:"event,omitempty"`
}

// Update is the patch for an existing event. Event is the updated event,
// or a preview of it in dry-run mode.
type Update struct {
	EventID string               `json:"eventId"`
	Patch   *schedule.EventPatch `json:"patch"`
	Event   *schedule.Event      `json:"event,omitempty"`
}

// Cancel identifies the event to delete.
type Cancel struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
}

// Candidate is one event offered for disambiguation.
type Candidate struct {
	EventID string    `json:"eventId"`
	ShortID string    `json:"shortId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Ambiguous lists every event matching the reference.
type Ambiguous struct {
	Reference  string      `json:"reference"`
	Candidates []Candidate `json:"candidates"`
}

// NotFound reports a reference matching no event, with nearby titles as a hint.
type NotFound struct {
	Reference    string            `json:"reference"`
	Window       schedule.Interval `json:"window"`
	NearbyTitles []string          `json:"nearbyTitles,omitempty"`
}

// Events lists the events in a window.
type Events struct {
	Window schedule.Interval `json:"window"`
	Events []*schedule.Event `json:"events"`
}

// Availability answers a free/busy question for Window.
type Availability struct {
	Window schedule.Interval     `json:"window"`
	Free   bool                  `json:"free"`
	Busy   []schedule.BusyPeriod `json:"busy"`
	Slots  []schedule.Slot       `json:"slots"`
}

// Emails lists mailbox search results, newest first.
type Emails struct {
	Query    mail.Query     `json:"query"`
	Messages []mail.Message `json:"messages"`
}
