package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/server/service/schedule"
)

// Store is the calendar backend. It implements schedule.Calendar over a Driver.
type Store struct {
	driver  Driver
	filters *FilterCache
	now     func() time.Time
}

var _ schedule.Calendar = (*Store)(nil)

// New creates a new instance of Store.
func New(driver Driver) *Store {
	return &Store{
		driver:  driver,
		filters: NewFilterCache(128),
		now:     time.Now,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate prepares the driver's schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.driver.Migrate(ctx); err != nil {
		return errors.Wrap(err, "failed to migrate")
	}
	return nil
}

// CompileFilter checks a CEL event filter and caches its program.
func (s *Store) CompileFilter(expr string) error {
	_, err := s.filters.Get(expr)
	return err
}

// ListEvents returns events overlapping window, earliest first.
func (s *Store) ListEvents(ctx context.Context, window schedule.Interval, filter *schedule.EventFilter) ([]*schedule.Event, error) {
	if err := window.Validate("window"); err != nil {
		return nil, err
	}
	find := overlapping(window)
	var program *Filter
	if filter != nil {
		find.CalendarIDs = filter.CalendarIDs
		find.IncludeCancelled = filter.IncludeCancelled
		if t := strings.TrimSpace(filter.TitleContains); t != "" {
			find.TitleContains = &t
		}
		if filter.Expression != "" {
			p, err := s.filters.Get(filter.Expression)
			if err != nil {
				return nil, err
			}
			program = p
		}
	}

	list, err := s.driver.ListEvents(ctx, find)
	if err != nil {
		return nil, err
	}
	events := make([]*schedule.Event, 0, len(list))
	for _, raw := range list {
		e := toScheduleEvent(raw)
		if program != nil {
			ok, err := program.Match(e)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		events = append(events, e)
	}
	return events, nil
}

// CheckBusy returns busy periods of confirmed events overlapping window.
func (s *Store) CheckBusy(ctx context.Context, window schedule.Interval, calendarIDs []string) ([]schedule.BusyPeriod, error) {
	if err := window.Validate("window"); err != nil {
		return nil, err
	}
	find := overlapping(window)
	find.CalendarIDs = calendarIDs

	list, err := s.driver.ListEvents(ctx, find)
	if err != nil {
		return nil, err
	}
	busy := make([]schedule.BusyPeriod, 0, len(list))
	for _, raw := range list {
		busy = append(busy, toScheduleEvent(raw).Busy())
	}
	schedule.SortBusy(busy)
	return busy, nil
}

// CreateEvent validates and persists a draft.
func (s *Store) CreateEvent(ctx context.Context, draft *schedule.EventDraft) (*schedule.Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	calendarID := draft.CalendarID
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	now := s.now().Unix()
	created, err := s.driver.CreateEvent(ctx, &Event{
		ID:          uuid.NewString(),
		CalendarID:  calendarID,
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		Location:    draft.Location,
		Status:      string(schedule.EventConfirmed),
		Attendees:   draft.Attendees,
		StartTs:     draft.Start.Unix(),
		EndTs:       draft.End.Unix(),
		CreatedTs:   now,
		UpdatedTs:   now,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}
	return toScheduleEvent(created), nil
}

// UpdateEvent applies patch to the event with id.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch *schedule.EventPatch) (*schedule.Event, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.Apply(toScheduleEvent(current))
	if err != nil {
		return nil, err
	}

	update := &UpdateEvent{ID: id, UpdatedTs: s.now().Unix()}
	if patch.Title != nil {
		update.Title = &next.Title
	}
	if patch.Description != nil {
		update.Description = &next.Description
	}
	if patch.Location != nil {
		update.Location = &next.Location
	}
	if patch.Attendees != nil {
		update.Attendees = &next.Attendees
	}
	if patch.MovesEvent() {
		start, end := next.Start.Unix(), next.End.Unix()
		update.StartTs, update.EndTs = &start, &end
	}

	updated, err := s.driver.UpdateEvent(ctx, update)
	if err != nil {
		return nil, err
	}
	return toScheduleEvent(updated), nil
}

// DeleteEvent removes the event with id.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.driver.DeleteEvent(ctx, &DeleteEvent{ID: id})
}

func (s *Store) get(ctx context.Context, id string) (*Event, error) {
	list, err := s.driver.ListEvents(ctx, &FindEvent{ID: &id, IncludeCancelled: true})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "event %s", id)
	}
	return list[0], nil
}

func overlapping(window schedule.Interval) *FindEvent {
	before, after := window.End.Unix(), window.Start.Unix()
	return &FindEvent{StartBefore: &before, EndAfter: &after}
}

func toScheduleEvent(e *Event) *schedule.Event {
	return &schedule.Event{
		ID:          e.ID,
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Status:      schedule.EventStatus(e.Status),
		Attendees:   append([]string(nil), e.Attendees...),
		Start:       time.Unix(e.StartTs, 0).UTC(),
		End:         time.Unix(e.EndTs, 0).UTC(),
	}
}
