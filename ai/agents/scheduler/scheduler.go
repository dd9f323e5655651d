// Package scheduler turns scheduling requests into decisions. A turn is
// parsed into an intent, completed across turns, checked against the
// calendar's busy time and then either committed or answered with
// alternatives, candidates or a follow-up question.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/intent"
	"github.com/hrygo/slotsense/ai/timeparse"
	"github.com/hrygo/slotsense/server/service/mail"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const (
	defaultMatchWindow = 30 * 24 * time.Hour
	defaultCallTimeout = 10 * time.Second
	// widenDays is how far the alternative search reaches when the
	// requested day has no free slot.
	widenDays = 7
	// nearbyTitleLimit caps the titles suggested after a failed match.
	nearbyTitleLimit = 5
)

// Config holds the scheduling policy.
type Config struct {
	WorkingHours        schedule.WorkingHours
	Scoring             schedule.Scoring
	CalendarIDs         []string
	Granularity         time.Duration
	MaxAlternatives     int
	MatchWindow         time.Duration
	CallTimeout         time.Duration
	ConfidenceThreshold float64
	// EventFilter is a CEL expression selecting the events that count as
	// busy, are listed and can be matched by title. Empty means all events.
	EventFilter string
	// DryRun returns Ready* decisions without calling the calendar.
	DryRun bool
}

// DefaultConfig returns the default policy in loc.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		WorkingHours:        schedule.DefaultWorkingHours(loc),
		Scoring:             schedule.DefaultScoring(),
		Granularity:         schedule.DefaultGranularity,
		MaxAlternatives:     schedule.DefaultMaxResults,
		MatchWindow:         defaultMatchWindow,
		CallTimeout:         defaultCallTimeout,
		ConfidenceThreshold: intent.ActionableConfidence,
	}
}

// Recorder receives resolve metrics.
type Recorder interface {
	RecordResolve(operation, outcome string, latency time.Duration)
	RecordUpstreamError(op, kind string)
	RecordLowConfidence(source string)
	ObserveSlotCandidates(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordResolve(string, string, time.Duration) {}
func (nopRecorder) RecordUpstreamError(string, string)          {}
func (nopRecorder) RecordLowConfidence(string)                  {}
func (nopRecorder) ObserveSlotCandidates(int)                   {}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithMailbox enables the email operations.
func WithMailbox(m mail.Mailbox) Option {
	return func(s *Scheduler) { s.mailbox = m }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the conversation id generator.
func WithIDGenerator(gen conversation.IDGenerator) Option {
	return func(s *Scheduler) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Scheduler is the scheduling orchestrator. It is safe for concurrent use;
// turns of the same conversation are serialized.
type Scheduler struct {
	cfg       Config
	calendar  schedule.Calendar
	oracle    *schedule.Oracle
	slots     *schedule.SlotFinder
	clock     *timeparse.Normalizer
	extractor intent.Extractor
	tracker   *conversation.Tracker
	states    conversation.Store
	mailbox   mail.Mailbox
	recorder  Recorder
	locks     *conversationLocks
	now       func() time.Time
	newID     conversation.IDGenerator
}

// New creates a Scheduler. Zero config values take their defaults.
func New(cfg Config, calendar schedule.Calendar, extractor intent.Extractor, states conversation.Store, opts ...Option) (*Scheduler, error) {
	if calendar == nil {
		return nil, errors.New("calendar is required")
	}
	if extractor == nil {
		return nil, errors.New("intent extractor is required")
	}
	if states == nil {
		return nil, errors.New("conversation store is required")
	}
	if err := cfg.WorkingHours.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid working hours")
	}
	if cfg.Scoring.Base == 0 {
		cfg.Scoring = schedule.DefaultScoring()
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = schedule.DefaultGranularity
	}
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = schedule.DefaultMaxResults
	}
	if cfg.MatchWindow <= 0 {
		cfg.MatchWindow = defaultMatchWindow
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = intent.ActionableConfidence
	}

	hours := cfg.WorkingHours
	s := &Scheduler{
		cfg:       cfg,
		calendar:  calendar,
		oracle:    schedule.NewOracle(calendar, cfg.CallTimeout, cfg.CalendarIDs...).WithFilter(cfg.EventFilter),
		slots:     schedule.NewSlotFinder(cfg.Scoring),
		clock:     timeparse.New(hours.Loc(), hours.StartHour, hours.EndHour),
		extractor: extractor,
		tracker:   conversation.NewTracker(),
		states:    states,
		recorder:  nopRecorder{},
		locks:     newConversationLocks(),
		now:       time.Now,
		newID:     conversation.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ResolveRequest is one user turn.
type ResolveRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Error is returned for a failed turn. The conversation named by
// ConversationID is left exactly as it was before the turn.
type Error struct {
	Err            error
	ConversationID string
	Operation      intent.Operation
}

func (e *Error) Error() string {
	if e.Operation != "" {
		return string(e.Operation) + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage explains the failure and the next step.
func (e *Error) UserMessage() string {
	msg := "Something went wrong while handling your request. Please try again."
	var explained interface{ UserMessage() string }
	if errors.As(e.Err, &explained) {
		msg = explained.UserMessage()
	}
	if e.ConversationID != "" {
		msg += " Your pending request is kept, so you can simply try again."
	}
	return msg
}

// turn is the working set of one Resolve call.
type turn struct {
	now    time.Time
	query  string
	id     string
	state  *conversation.State
	intent *intent.Intent
	// target is the event an update or cancel refers to, once known.
	target *schedule.Event
	// existed is true when a stored state was loaded for id.
	existed bool
}

// Resolve handles one turn. Decisions that wait for a reply carry a
// conversation id to echo back on the next turn. Unknown or expired ids are
// treated as fresh requests.
func (s *Scheduler) Resolve(ctx context.Context, req ResolveRequest) (*Decision, error) {
	started := time.Now()
	id := strings.TrimSpace(req.ConversationID)
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.recorder.RecordResolve("unknown", "validation_error", time.Since(started))
		return nil, &Error{Err: &schedule.ValidationError{Field: "query", Reason: "must not be empty"}}
	}

	if id != "" {
		unlock, err := s.locks.Lock(ctx, id)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	t, err := s.begin(ctx, id, query)
	if err != nil {
		return nil, s.fail(t, err, started)
	}
	d, next, err := s.dispatch(ctx, t)
	if err != nil {
		return nil, s.fail(t, err, started)
	}
	if err := s.finish(ctx, t, d, next); err != nil {
		return nil, s.fail(t, err, started)
	}

	d.Operation = t.intent.Operation
	d.Confidence = t.intent.Confidence
	d.LowConfidence = s.lowConfidence(t.intent)
	s.recorder.RecordResolve(string(d.Operation), string(d.Kind), time.Since(started))
	slog.Debug("scheduler: resolved",
		"conversation_id", d.ConversationID,
		"operation", d.Operation,
		"decision", d.Kind,
		"committed", d.Committed,
	)
	return d, nil
}

// begin loads the pending state and extracts the intent.
func (s *Scheduler) begin(ctx context.Context, id, query string) (*turn, error) {
	t := &turn{now: s.now(), query: query, id: id}
	if id != "" {
		state, err := s.loadState(ctx, id)
		if err != nil {
			return t, err
		}
		t.state = state
		t.existed = state != nil
		if state == nil {
			// Expired ids are not reused; a new one is issued if needed.
			t.id = ""
		}
	}

	s.step(t, "parsing_intent")
	in, err := s.extractor.Extract(ctx, query, t.state.Hint(t.now))
	if err != nil {
		return t, err
	}
	if in == nil {
		in = &intent.Intent{Operation: intent.OpQuery, Source: intent.SourceFallback, Query: query}
	}
	t.intent = in

	if t.state != nil && in.Operation != t.state.Operation {
		if intent.NamesOperation(query) {
			slog.Debug("scheduler: new request replaces pending one",
				"conversation_id", t.id,
				"pending", t.state.Operation,
				"operation", in.Operation,
			)
			t.state = nil
		} else {
			in.Operation = t.state.Operation
			in.Normalize()
		}
	}
	if t.state != nil && t.state.TargetEventID != "" {
		for _, c := range t.state.Candidates {
			if c.EventID == t.state.TargetEventID {
				t.target = candidateEvent(c)
			}
		}
	}

	if s.lowConfidence(in) {
		slog.Warn("scheduler: low confidence parse",
			"conversation_id", t.id,
			"operation", in.Operation,
			"confidence", in.Confidence,
			"source", in.Source,
		)
		s.recorder.RecordLowConfidence(string(in.Source))
	}
	return t, ctx.Err()
}

func (s *Scheduler) lowConfidence(in *intent.Intent) bool {
	return in.LowConfidence() || in.Confidence < s.cfg.ConfidenceThreshold
}

func (s *Scheduler) dispatch(ctx context.Context, t *turn) (*Decision, *conversation.State, error) {
	if t.state != nil {
		switch t.state.Stage {
		case conversation.StageAwaitingAlternative:
			s.applyAlternativeReply(t)
		case conversation.StageAwaitingSelection:
			if c, ok := pickCandidate(t.query, t.state.Candidates); ok {
				t.target = candidateEvent(c)
			} else if c, ok := s.pickCandidateByDay(t); ok {
				t.target = candidateEvent(c)
			}
		}
	}

	switch t.intent.Operation {
	case intent.OpSchedule:
		return s.schedule(ctx, t)
	case intent.OpUpdate:
		return s.update(ctx, t)
	case intent.OpCancel:
		return s.cancel(ctx, t)
	case intent.OpQuery:
		return s.listDay(ctx, t)
	case intent.OpCheckAvailability:
		return s.availability(ctx, t)
	case intent.OpEmailQuery, intent.OpEmailSearch:
		return s.emails(ctx, t)
	}
	return &Decision{
		Kind:    KindUnsupported,
		Message: "I can schedule, move, cancel and list events, check availability and search email. Could you rephrase your request?",
	}, nil, nil
}

// applyAlternativeReply reads a reply to proposed slots: an ordinal picks a
// slot, a bare clock time keeps the pending date.
func (s *Scheduler) applyAlternativeReply(t *turn) {
	e := &t.intent.Entities
	if slot, ok := pickAlternative(t.query, t.state.Alternatives); ok {
		start := slot.Start.In(s.loc())
		minutes := int(slot.End.Sub(slot.Start) / time.Minute)
		e.DateTime = &start
		e.DateOnly = false
		e.Duration = &minutes
		return
	}
	pending := t.state.Pending.DateTime
	m, ok := s.clock.Parse(t.query, t.now)
	if !ok || m.HasDate || !m.HasTime || pending == nil {
		return
	}
	y, mo, d := pending.In(s.loc()).Date()
	clock := m.Time.In(s.loc())
	start := time.Date(y, mo, d, clock.Hour(), clock.Minute(), 0, 0, s.loc())
	e.DateTime = &start
	e.DateOnly = false
}

// pickCandidateByDay selects the only candidate on the day named in the reply.
func (s *Scheduler) pickCandidateByDay(t *turn) (conversation.Candidate, bool) {
	dt := t.intent.Entities.DateTime
	if dt == nil {
		return conversation.Candidate{}, false
	}
	day := schedule.StartOfDay(*dt, s.loc())
	var found []conversation.Candidate
	for _, c := range t.state.Candidates {
		if schedule.StartOfDay(c.Start, s.loc()).Equal(day) {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return conversation.Candidate{}, false
	}
	return found[0], true
}

// finish persists the next state, or deletes the consumed one.
func (s *Scheduler) finish(ctx context.Context, t *turn, d *Decision, next *conversation.State) error {
	if next != nil {
		next.ID = t.id
		if next.ID == "" {
			next.ID = s.newID()
		}
		next.Turns++
		next.UpdatedAt = t.now
		err := schedule.Call(ctx, "saveConversation", s.cfg.CallTimeout, func(ctx context.Context) error {
			return s.states.Save(ctx, next)
		})
		if err != nil {
			return err
		}
		d.ConversationID = next.ID
		slog.Debug("scheduler: awaiting reply",
			"conversation_id", next.ID,
			"operation", next.Operation,
			"step", next.Stage,
			"missing", next.MissingFields,
		)
		return nil
	}
	if t.existed {
		if err := s.states.Delete(ctx, t.id); err != nil {
			// The decision is final already; an undeleted state expires on its own.
			slog.Warn("scheduler: failed to delete conversation", "conversation_id", t.id, "error", err)
		}
	}
	return nil
}

func (s *Scheduler) fail(t *turn, err error, started time.Time) error {
	op := "unknown"
	e := &Error{Err: err}
	if t != nil {
		if t.existed {
			e.ConversationID = t.id
		}
		if t.intent != nil {
			e.Operation = t.intent.Operation
			op = string(t.intent.Operation)
		}
	}

	outcome := "error"
	var upstream *schedule.UpstreamError
	var invalid *schedule.ValidationError
	switch {
	case errors.As(err, &upstream):
		outcome = "upstream_error"
		kind := "failure"
		if upstream.Timeout {
			kind = "timeout"
		}
		s.recorder.RecordUpstreamError(upstream.Op, kind)
		slog.Error("scheduler: upstream call failed", "op", upstream.Op, "timeout", upstream.Timeout, "error", upstream.Err)
	case errors.As(err, &invalid):
		outcome = "validation_error"
		slog.Info("scheduler: invalid request", "field", invalid.Field, "reason", invalid.Reason)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "abandoned"
	}
	s.recorder.RecordResolve(op, outcome, time.Since(started))
	return e
}

func (s *Scheduler) loadState(ctx context.Context, id string) (*conversation.State, error) {
	var state *conversation.State
	err := schedule.Call(ctx, "loadConversation", s.cfg.CallTimeout, func(ctx context.Context) error {
		var err error
		state, err = s.states.Get(ctx, id)
		if errors.Is(err, conversation.ErrNotFound) {
			state, err = nil, nil
		}
		return err
	})
	return state, err
}

// pending builds the state that waits for the user's next reply.
func (s *Scheduler) pending(t *turn, e intent.Entities, stage conversation.Stage, missing []string, question string) *conversation.State {
	next := &conversation.State{
		CreatedAt:     t.now,
		OriginalQuery: t.query,
		Operation:     t.intent.Operation,
		Stage:         stage,
		LastQuestion:  question,
		Pending:       e.Clone(),
		MissingFields: append([]string(nil), missing...),
	}
	if t.state != nil {
		next.CreatedAt = t.state.CreatedAt
		next.OriginalQuery = t.state.OriginalQuery
		next.Turns = t.state.Turns
	}
	if t.target != nil {
		next.TargetEventID = t.target.ID
		next.Candidates = []conversation.Candidate{{
			EventID: t.target.ID,
			Title:   t.target.Title,
			Start:   t.target.Start,
			End:     t.target.End,
		}}
	}
	return next
}

func (s *Scheduler) followUp(t *turn, e intent.Entities, missing []string, question string, suggestions []schedule.Slot) (*Decision, *conversation.State, error) {
	next := s.pending(t, e, conversation.StageAwaitingFields, missing, question)
	if len(suggestions) > 0 {
		next.Stage = conversation.StageAwaitingAlternative
		next.Alternatives = toConversationSlots(suggestions)
	}
	return &Decision{
		Kind:    KindNeedsFollowUp,
		Message: question,
		FollowUp: &FollowUp{
			Question:      question,
			MissingFields: append([]string(nil), missing...),
			Suggestions:   suggestions,
		},
	}, next, nil
}

// step logs a state machine transition.
func (s *Scheduler) step(t *turn, name string) {
	op := intent.Operation("")
	if t.intent != nil {
		op = t.intent.Operation
	}
	slog.Debug("scheduler: step", "conversation_id", t.id, "operation", op, "step", name)
}

func (s *Scheduler) loc() *time.Location {
	return s.cfg.WorkingHours.Loc()
}

func candidateEvent(c conversation.Candidate) *schedule.Event {
	return &schedule.Event{ID: c.EventID, Title: c.Title, Start: c.Start, End: c.End, Status: schedule.EventConfirmed}
}

func toConversationSlots(slots []schedule.Slot) []conversation.Slot {
	out := make([]conversation.Slot, 0, len(slots))
	for _, slot := range slots {
		out = append(out, conversation.Slot{Start: slot.Start, End: slot.End})
	}
	return out
}
