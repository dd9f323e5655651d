package scheduler

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/timeparse"
	"github.com/hrygo/slotsense/server/service/mail"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const (
	defaultAvailabilityCheck = 30 * time.Minute
	emailResultLimit         = 10
)

var (
	senderRe = regexp.MustCompile(`(?i)\bfrom\s+([\w.+@-]+)`)
	topicRe  = regexp.MustCompile(`(?i)\b(?:about|regarding|mentioning)\s+(.+?)(?:\s+from\s+\S+)?[\s?.!]*$`)
	unreadRe = regexp.MustCompile(`(?i)\bunread\b`)
)

// listDay answers "what do I have on ..." with the events of one day, or of
// one part of it.
func (s *Scheduler) listDay(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	s.step(t, "listing_events")
	e := t.intent.Entities
	loc := s.loc()
	day := t.now
	if e.DateTime != nil {
		day = *e.DateTime
	}
	start := schedule.StartOfDay(day, loc)
	window := schedule.Interval{Start: start, End: start.AddDate(0, 0, 1)}
	if from, to, ok := s.clock.DayPartWindow(day, e.DayPart); ok {
		window = schedule.Interval{Start: from, End: to}
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
	if events == nil {
		events = []*schedule.Event{}
	}
	ev := &Events{Window: window, Events: events}
	return &Decision{Kind: KindEvents, Message: eventsMessage(ev, loc), Events: ev}, nil, nil
}

// availability answers free/busy questions. A specific time is checked for
// the requested duration, a day or day part is checked as a whole.
func (s *Scheduler) eventFilter() *schedule.EventFilter {
	return &schedule.EventFilter{CalendarIDs: s.cfg.CalendarIDs, Expression: s.cfg.EventFilter}
}

func (s *Scheduler) availability(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	s.step(t, "checking_availability")
	e := t.intent.Entities
	loc := s.loc()
	duration := defaultAvailabilityCheck
	if e.Duration != nil {
		duration = time.Duration(*e.Duration) * time.Minute
	}

	var window schedule.Interval
	var anchor *time.Time
	switch {
	case e.DayPart != timeparse.DayPartNone:
		day := t.now
		if e.DateTime != nil {
			day = *e.DateTime
		}
		from, to, _ := s.clock.DayPartWindow(day, e.DayPart)
		window = schedule.Interval{Start: from, End: to}
	case e.DateTime != nil && !e.DateOnly:
		start := e.DateTime.In(loc)
		window = schedule.Interval{Start: start, End: start.Add(duration)}
		anchor = &start
	case e.DateTime != nil:
		window = s.cfg.WorkingHours.DayWindow(*e.DateTime)
	default:
		window = clampStart(s.cfg.WorkingHours.DayWindow(t.now), t.now)
	}
	if !window.End.After(window.Start) {
		// Today's working hours are over.
		window = schedule.Interval{Start: t.now, End: schedule.StartOfDay(t.now, loc).AddDate(0, 0, 1)}
	}

	busy, err := s.oracle.Busy(ctx, window)
	if err != nil {
		return nil, nil, err
	}
	a := &Availability{Window: window, Free: len(busy) == 0, Busy: busy, Slots: []schedule.Slot{}}
	if a.Busy == nil {
		a.Busy = []schedule.BusyPeriod{}
	}

	// A busy point check looks for openings around it on the same day.
	search := window
	if anchor != nil {
		search = clampStart(s.cfg.WorkingHours.DayWindow(*anchor), t.now)
	}
	if anchor == nil || !a.Free {
		slots, err := s.findSlots(ctx, search, duration, anchor)
		if err != nil {
			return nil, nil, err
		}
		if slots != nil {
			a.Slots = slots
		}
		s.recorder.ObserveSlotCandidates(len(slots))
	}
	return &Decision{Kind: KindAvailability, Message: availabilityMessage(a, loc), Availability: a}, nil, nil
}

// emails searches the mailbox. Without a connected mailbox the request is
// answered as unsupported instead of failing.
func (s *Scheduler) emails(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	if s.mailbox == nil {
		return &Decision{
			Kind:    KindUnsupported,
			Message: "Email isn't connected, so I can't look at messages. Calendar requests still work.",
		}, nil, nil
	}

	s.step(t, "searching_mail")
	q := s.mailQuery(t)
	var messages []mail.Message
	err := schedule.Call(ctx, "searchMail", s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		messages, err = s.mailbox.Search(ctx, q)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if messages == nil {
		messages = []mail.Message{}
	}
	em := &Emails{Query: q, Messages: messages}
	return &Decision{Kind: KindEmails, Message: emailsMessage(em), Emails: em}, nil, nil
}

func (s *Scheduler) mailQuery(t *turn) mail.Query {
	e := t.intent.Entities
	q := mail.Query{Limit: emailResultLimit, UnreadOnly: unreadRe.MatchString(t.query)}
	if e.DateTime != nil {
		q.Since = schedule.StartOfDay(*e.DateTime, s.loc())
		q.Until = q.Since.AddDate(0, 0, 1)
	}

	if m := senderRe.FindStringSubmatch(t.query); m != nil {
		if _, isTime := s.clock.Parse(m[1], t.now); !isTime {
			q.From = m[1]
		}
	}
	if q.From == "" && len(e.Attendees) > 0 {
		q.From = e.Attendees[0]
	}

	if m := topicRe.FindStringSubmatch(t.query); m != nil {
		q.Text = strings.TrimSpace(m[1])
	} else if e.Description != nil && !strings.EqualFold(*e.Description, q.From) {
		q.Text = *e.Description
	}
	return q
}
