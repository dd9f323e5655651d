package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/ai/timeparse"
	"github.com/hrygo/slotsense/server/service/schedule"
)

// schedule creates a new event, or explains why it cannot yet.
func (s *Scheduler) schedule(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	s.step(t, "checking_completeness")
	res := s.tracker.CheckCompleteness(t.intent, t.state)
	e := res.Intent.Entities
	if !res.Complete {
		return s.followUp(t, e, res.MissingFields, res.Question, nil)
	}

	loc := s.loc()
	start := e.DateTime.In(loc)
	duration := time.Duration(*e.Duration) * time.Minute
	title := *e.Title

	if e.DateOnly && e.DayPart == timeparse.DayPartNone {
		return s.suggestTimes(ctx, t, e, start, duration)
	}
	if start.Before(t.now) {
		e.DateTime = nil
		question := fmt.Sprintf("That time has already passed. When should %s take place?", quote(title))
		return s.followUp(t, e, []string{intent.EntityDateTime}, question, nil)
	}

	proposed := schedule.Interval{Start: start, End: start.Add(duration)}
	s.step(t, "checking_availability")
	busy, err := s.oracle.Busy(ctx, s.dayRange(proposed))
	if err != nil {
		return nil, nil, err
	}
	if conflicts := schedule.FindConflicts(proposed, busy); len(conflicts) > 0 {
		return s.conflict(ctx, t, e, proposed, conflicts)
	}

	draft := &schedule.EventDraft{
		Title:     title,
		Start:     proposed.Start,
		End:       proposed.End,
		Attendees: append([]string(nil), e.Attendees...),
	}
	if e.Location != nil {
		draft.Location = *e.Location
	}
	if e.Description != nil {
		draft.Description = *e.Description
	}
	if len(s.cfg.CalendarIDs) > 0 {
		draft.CalendarID = s.cfg.CalendarIDs[0]
	}
	if err := draft.Validate(); err != nil {
		return nil, nil, err
	}

	d := &Decision{Kind: KindReadyToCreate, Create: &Create{Draft: draft}}
	if !s.cfg.DryRun {
		s.step(t, "committing")
		err := schedule.Call(ctx, "createEvent", s.cfg.CallTimeout, func(ctx context.Context) error {
			created, err := s.calendar.CreateEvent(ctx, draft)
			d.Create.Event = created
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		d.Committed = true
	}
	d.Message = createdMessage(draft, d.Committed, loc)
	return d, nil, nil
}

// suggestTimes asks for a start time when only the date is known, offering
// the best free slots of that day.
func (s *Scheduler) suggestTimes(ctx context.Context, t *turn, e intent.Entities, day time.Time, duration time.Duration) (*Decision, *conversation.State, error) {
	loc := s.loc()
	title := *e.Title
	if !schedule.StartOfDay(day, loc).AddDate(0, 0, 1).After(t.now) {
		e.DateTime = nil
		question := fmt.Sprintf("That day has already passed. When should %s take place?", quote(title))
		return s.followUp(t, e, []string{intent.EntityDateTime}, question, nil)
	}

	s.step(t, "searching_slots")
	window := clampStart(s.cfg.WorkingHours.DayWindow(day), t.now)
	slots, err := s.findSlots(ctx, window, duration, nil)
	if err != nil {
		return nil, nil, err
	}
	s.recorder.ObserveSlotCandidates(len(slots))

	question := fmt.Sprintf("What time on %s should %s start?", day.Format(dayLayout), quote(title))
	if len(slots) > 0 {
		question += " Free slots:" + formatSlots(slots, loc) + "\nReply with a number or a time."
	}
	return s.followUp(t, e, []string{intent.EntityDateTime}, question, slots)
}

// conflict proposes alternatives for a proposed interval that overlaps busy
// time. The search covers the requested day first and widens to a week when
// that day is full. Events in exclude do not count as busy.
func (s *Scheduler) conflict(ctx context.Context, t *turn, e intent.Entities, proposed schedule.Interval, conflicts []schedule.BusyPeriod, exclude ...string) (*Decision, *conversation.State, error) {
	s.step(t, "searching_alternatives")
	anchor := proposed.Start
	slots, err := s.findSlots(ctx, s.searchWindow(anchor, t.now, 1), proposed.Duration(), &anchor, exclude...)
	if err != nil {
		return nil, nil, err
	}
	if len(slots) == 0 {
		slots, err = s.findSlots(ctx, s.searchWindow(anchor, t.now, widenDays), proposed.Duration(), &anchor, exclude...)
		if err != nil {
			return nil, nil, err
		}
	}
	s.recorder.ObserveSlotCandidates(len(slots))

	c := &Conflict{Proposed: proposed, Conflicts: conflicts, Alternatives: slots}
	if c.Alternatives == nil {
		c.Alternatives = []schedule.Slot{}
	}
	msg := conflictMessage(c, s.loc())
	next := s.pending(t, e, conversation.StageAwaitingAlternative, []string{intent.EntityDateTime}, msg)
	next.Alternatives = toConversationSlots(slots)
	return &Decision{Kind: KindConflict, Message: msg, Conflict: c}, next, nil
}

// findSlots reads busy time for window and returns the best free slots.
// A window that is already over yields no slots.
func (s *Scheduler) findSlots(ctx context.Context, window schedule.Interval, duration time.Duration, anchor *time.Time, exclude ...string) ([]schedule.Slot, error) {
	if !window.End.After(window.Start) {
		return nil, nil
	}
	busy, err := s.oracle.Busy(ctx, window)
	if err != nil {
		return nil, err
	}
	return s.slots.Find(schedule.SlotQuery{
		Anchor:       anchor,
		Window:       window,
		WorkingHours: s.cfg.WorkingHours,
		Busy:         schedule.ExcludeEvents(busy, exclude...),
		Duration:     duration,
		Granularity:  s.cfg.Granularity,
		MaxResults:   s.cfg.MaxAlternatives,
	})
}

// searchWindow spans days local days from the day of anchor, never starting
// before now.
func (s *Scheduler) searchWindow(anchor, now time.Time, days int) schedule.Interval {
	start := schedule.StartOfDay(anchor, s.loc())
	return clampStart(schedule.Interval{Start: start, End: start.AddDate(0, 0, days)}, now)
}

// dayRange covers the whole local days touched by iv.
func (s *Scheduler) dayRange(iv schedule.Interval) schedule.Interval {
	loc := s.loc()
	last := iv.End
	if last.After(iv.Start) {
		last = last.Add(-time.Nanosecond)
	}
	return schedule.Interval{
		Start: schedule.StartOfDay(iv.Start, loc),
		End:   schedule.StartOfDay(last, loc).AddDate(0, 0, 1),
	}
}

func clampStart(iv schedule.Interval, now time.Time) schedule.Interval {
	if iv.Start.Before(now) {
		iv.Start = now
	}
	return iv
}
