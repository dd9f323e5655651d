// Package conversation carries partially resolved scheduling requests
// across turns.
package conversation

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/ai/intent"
)

// ErrNotFound is returned for unknown or expired conversation ids.
var ErrNotFound = errors.New("conversation not found")

// Stage tells what kind of answer the pending question expects.
type Stage string

const (
	// StageAwaitingFields waits for missing entities.
	StageAwaitingFields Stage = "awaiting_fields"
	// StageAwaitingAlternative waits for a pick among proposed slots.
	StageAwaitingAlternative Stage = "awaiting_alternative"
	// StageAwaitingSelection waits for a pick among matching events.
	StageAwaitingSelection Stage = "awaiting_selection"
	// StageAwaitingTitle waits for a corrected title after no event matched.
	StageAwaitingTitle Stage = "awaiting_title"
)

// Slot is a proposed alternative remembered between turns.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Candidate is a matching event offered for disambiguation.
type Candidate struct {
	EventID string    `json:"eventId"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// State is the pending part of a conversation.
type State struct {
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	ID            string           `json:"id"`
	OriginalQuery string           `json:"originalQuery"`
	Operation     intent.Operation `json:"operation"`
	Stage         Stage            `json:"stage"`
	LastQuestion  string           `json:"lastQuestion,omitempty"`
	// TargetEventID is the event an update or cancel refers to once known.
	TargetEventID string          `json:"targetEventId,omitempty"`
	Pending       intent.Entities `json:"pendingEntities"`
	MissingFields []string        `json:"missingFields,omitempty"`
	Alternatives  []Slot          `json:"alternatives,omitempty"`
	Candidates    []Candidate     `json:"candidates,omitempty"`
	Turns         int             `json:"turns"`
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Pending = s.Pending.Clone()
	out.MissingFields = append([]string(nil), s.MissingFields...)
	out.Alternatives = append([]Slot(nil), s.Alternatives...)
	out.Candidates = append([]Candidate(nil), s.Candidates...)
	return &out
}

// Hint describes the state to an intent extractor.
func (s *State) Hint(now time.Time) *intent.Hint {
	h := &intent.Hint{Now: now}
	if s == nil {
		return h
	}
	h.Operation = s.Operation
	h.MissingFields = append([]string(nil), s.MissingFields...)
	h.OriginalQuery = s.OriginalQuery
	h.LastQuestion = s.LastQuestion
	return h
}

// Store persists conversation states. Implementations must return
// ErrNotFound for unknown and expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}

// IDGenerator produces conversation ids.
type IDGenerator func() string

// NewID returns a short, URL-safe conversation id.
func NewID() string {
	return shortuuid.New()
}
