package conversation

import (
	"fmt"

	"github.com/hrygo/slotsense/ai/intent"
)

// requiredFields lists, per operation, the entities checked in priority order.
var requiredFields = map[intent.Operation][]string{
	intent.OpSchedule: {intent.EntityTitle, intent.EntityDateTime, intent.EntityDuration},
	intent.OpUpdate:   {intent.EntityCurrentTitle},
	intent.OpCancel:   {intent.EntityTitle},
}

// Result is the outcome of a completeness check.
type Result struct {
	// Intent carries the merged entities in both outcomes.
	Intent        *intent.Intent
	Question      string
	MissingFields []string
	Complete      bool
}

// Tracker is the completeness gate.
type Tracker struct{}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// CheckCompleteness merges in over the pending entities (newer wins) and
// reports which required fields are still missing. Only one question is
// asked, for the first missing field.
func (t *Tracker) CheckCompleteness(in *intent.Intent, pending *State) Result {
	merged := *in
	if pending != nil && pending.Operation == in.Operation {
		merged.Entities = pending.Pending.Merge(in.Entities)
	} else {
		merged.Entities = in.Entities.Clone()
	}

	missing := MissingFields(merged.Operation, merged.Entities)
	if len(missing) == 0 {
		return Result{Complete: true, Intent: &merged}
	}
	return Result{
		Intent:        &merged,
		Question:      Question(merged.Operation, missing[0], merged.Entities),
		MissingFields: missing,
	}
}

// MissingFields returns the required entities absent from e, in priority order.
func MissingFields(op intent.Operation, e intent.Entities) []string {
	var missing []string
	for _, field := range requiredFields[op] {
		present := e.Has(field)
		if field == intent.EntityCurrentTitle {
			present = e.Reference() != ""
		}
		if !present {
			missing = append(missing, field)
		}
	}
	return missing
}

// Question renders the follow-up question for field.
func Question(op intent.Operation, field string, e intent.Entities) string {
	subject := "the event"
	if e.Title != nil {
		subject = fmt.Sprintf("%q", *e.Title)
	}
	switch field {
	case intent.EntityTitle:
		if op == intent.OpCancel {
			return "Which event would you like to cancel?"
		}
		return "What should the event be called?"
	case intent.EntityCurrentTitle:
		return "Which event would you like to change?"
	case intent.EntityDateTime:
		return fmt.Sprintf("When should %s take place?", subject)
	case intent.EntityDuration:
		return fmt.Sprintf("How long should %s last?", subject)
	}
	return fmt.Sprintf("Could you tell me the %s?", field)
}
