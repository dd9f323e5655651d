package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/ai/internal/strutil"
	"github.com/hrygo/slotsense/server/service/schedule"
)

// update changes an existing event located by title.
func (s *Scheduler) update(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	e := s.mergedEntities(t)
	if t.target == nil {
		s.step(t, "checking_completeness")
		res := s.tracker.CheckCompleteness(t.intent, t.state)
		e = res.Intent.Entities
		if !res.Complete {
			return s.followUp(t, e, res.MissingFields, res.Question, nil)
		}
		d, next, err := s.match(ctx, t, e)
		if d != nil || err != nil {
			return d, next, err
		}
	}

	patch := s.buildPatch(t.target, e)
	if patch.IsEmpty() {
		question := fmt.Sprintf("What should change about %s?", quote(t.target.Title))
		return s.followUp(t, e, []string{intent.EntityNewTitle, intent.EntityDateTime}, question, nil)
	}
	preview, err := patch.Apply(t.target)
	if err != nil {
		return nil, nil, err
	}

	if patch.MovesEvent() {
		if preview.Start.Before(t.now) {
			e.DateTime = nil
			question := fmt.Sprintf("That time has already passed. When should %s take place?", quote(preview.Title))
			return s.followUp(t, e, []string{intent.EntityDateTime}, question, nil)
		}
		s.step(t, "checking_availability")
		busy, err := s.oracle.Busy(ctx, s.dayRange(preview.Interval()))
		if err != nil {
			return nil, nil, err
		}
		busy = schedule.ExcludeEvents(busy, t.target.ID)
		if conflicts := schedule.FindConflicts(preview.Interval(), busy); len(conflicts) > 0 {
			return s.conflict(ctx, t, e, preview.Interval(), conflicts, t.target.ID)
		}
	}

	d := &Decision{
		Kind:   KindReadyToUpdate,
		Update: &Update{EventID: t.target.ID, Patch: patch, Event: preview},
	}
	if !s.cfg.DryRun {
		s.step(t, "committing")
		err := schedule.Call(ctx, "updateEvent", s.cfg.CallTimeout, func(ctx context.Context) error {
			updated, err := s.calendar.UpdateEvent(ctx, t.target.ID, patch)
			if updated != nil {
				d.Update.Event = updated
			}
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		d.Committed = true
	}
	d.Message = updatedMessage(t.target, d.Update.Event, d.Committed, s.loc())
	return d, nil, nil
}

// cancel deletes an existing event located by title.
func (s *Scheduler) cancel(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	if t.target == nil {
		s.step(t, "checking_completeness")
		res := s.tracker.CheckCompleteness(t.intent, t.state)
		e := res.Intent.Entities
		if !res.Complete {
			return s.followUp(t, e, res.MissingFields, res.Question, nil)
		}
		d, next, err := s.match(ctx, t, e)
		if d != nil || err != nil {
			return d, next, err
		}
	}

	target := t.target
	d := &Decision{
		Kind:   KindReadyToCancel,
		Cancel: &Cancel{EventID: target.ID, Title: target.Title, Start: target.Start},
	}
	verb := "Ready to cancel"
	if !s.cfg.DryRun {
		s.step(t, "committing")
		err := schedule.Call(ctx, "deleteEvent", s.cfg.CallTimeout, func(ctx context.Context) error {
			return s.calendar.DeleteEvent(ctx, target.ID)
		})
		if err != nil {
			return nil, nil, err
		}
		d.Committed = true
		verb = "Cancelled"
	}
	d.Message = fmt.Sprintf("%s %s on %s.", verb, quote(target.Title), formatRange(target.Interval(), s.loc()))
	return d, nil, nil
}

// match looks the referenced event up. On a single match t.target is set
// and a nil decision is returned; otherwise the decision asks the user to
// pick or correct the title.
func (s *Scheduler) match(ctx context.Context, t *turn, e intent.Entities) (*Decision, *conversation.State, error) {
	s.step(t, "searching_matching_event")
	loc := s.loc()
	ref := e.Reference()
	start := schedule.StartOfDay(t.now, loc)
	window := schedule.Interval{Start: start, End: start.Add(s.cfg.MatchWindow)}
	if t.intent.Operation == intent.OpCancel && e.DateTime != nil {
		day := schedule.StartOfDay(*e.DateTime, loc)
		window = schedule.Interval{Start: day, End: day.AddDate(0, 0, 1)}
	}

	var events []*schedule.Event
	err := schedule.Call(ctx, "listEvents", s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		events, err = s.calendar.ListEvents(ctx, window, s.eventFilter())
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	field := intent.EntityTitle
	if t.intent.Operation == intent.OpUpdate {
		field = intent.EntityCurrentTitle
	}
	matches := schedule.MatchTitle(ref, events)
	switch len(matches) {
	case 0:
		nf := &NotFound{
			Reference:    ref,
			Window:       window,
			NearbyTitles: schedule.NearbyTitles(events, nearbyTitleLimit),
		}
		msg := notFoundMessage(nf)
		e.Title, e.CurrentTitle = nil, nil
		next := s.pending(t, e, conversation.StageAwaitingTitle, []string{field}, msg)
		return &Decision{Kind: KindNotFound, Message: msg, NotFound: nf}, next, nil
	case 1:
		t.target = matches[0].Event
		return nil, nil, nil
	}

	a := &Ambiguous{Reference: ref, Candidates: make([]Candidate, 0, len(matches))}
	stored := make([]conversation.Candidate, 0, len(matches))
	for _, m := range matches {
		ev := m.Event
		a.Candidates = append(a.Candidates, Candidate{
			EventID: ev.ID,
			ShortID: strutil.ShortID(ev.ID),
			Title:   ev.Title,
			Start:   ev.Start,
			End:     ev.End,
		})
		stored = append(stored, conversation.Candidate{EventID: ev.ID, Title: ev.Title, Start: ev.Start, End: ev.End})
	}
	msg := ambiguousMessage(a, loc)
	// A reply that is not a pick is read as a new title for the reference.
	e.Title, e.CurrentTitle = &ref, nil
	next := s.pending(t, e, conversation.StageAwaitingSelection, []string{field}, msg)
	next.Candidates = stored
	return &Decision{Kind: KindAmbiguousMatch, Message: msg, Ambiguous: a}, next, nil
}

// buildPatch turns the update entities into a patch for target. A date
// without a time keeps the event's time of day, and a move keeps the
// event's length unless a duration is given.
func (s *Scheduler) buildPatch(target *schedule.Event, e intent.Entities) *schedule.EventPatch {
	loc := s.loc()
	patch := &schedule.EventPatch{}
	if e.NewTitle != nil && *e.NewTitle != target.Title {
		title := *e.NewTitle
		patch.Title = &title
	}

	length := target.End.Sub(target.Start)
	if e.Duration != nil {
		length = time.Duration(*e.Duration) * time.Minute
	}
	switch {
	case e.DateTime != nil:
		start := e.DateTime.In(loc)
		if e.DateOnly {
			clock := target.Start.In(loc)
			start = time.Date(start.Year(), start.Month(), start.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
		}
		end := start.Add(length)
		if !start.Equal(target.Start) || !end.Equal(target.End) {
			patch.Start, patch.End = &start, &end
		}
	case e.Duration != nil:
		end := target.Start.Add(length)
		if !end.Equal(target.End) {
			patch.End = &end
		}
	}

	if e.Location != nil {
		location := *e.Location
		patch.Location = &location
	}
	if e.Description != nil {
		description := *e.Description
		patch.Description = &description
	}
	if len(e.Attendees) > 0 {
		patch.Attendees = append([]string(nil), e.Attendees...)
	}
	return patch
}

// mergedEntities overlays this turn's entities on the pending ones.
func (s *Scheduler) mergedEntities(t *turn) intent.Entities {
	if t.state != nil && t.state.Operation == t.intent.Operation {
		return t.state.Pending.Merge(t.intent.Entities)
	}
	return t.intent.Entities.Clone()
}

func updatedMessage(before, after *schedule.Event, committed bool, loc *time.Location) string {
	verb := "Updated"
	if !committed {
		verb = "Ready to update"
	}
	if after == nil {
		return fmt.Sprintf("%s %s.", verb, quote(before.Title))
	}
	msg := fmt.Sprintf("%s %s", verb, quote(before.Title))
	if after.Title != before.Title {
		msg += " to " + quote(after.Title)
	}
	return msg + fmt.Sprintf(", now %s.", formatRange(after.Interval(), loc))
}
