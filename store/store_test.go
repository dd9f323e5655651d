package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/server/service/schedule"
	"github.com/hrygo/slotsense/store"
	"github.com/hrygo/slotsense/store/db/memory"
)

var day = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(memory.NewDB())
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func create(t *testing.T, s *store.Store, title string, start, end time.Time) *schedule.Event {
	t.Helper()
	e, err := s.CreateEvent(context.Background(), &schedule.EventDraft{Title: title, Start: start, End: end})
	require.NoError(t, err)
	return e
}

func TestStore_CreateAndList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sync := create(t, s, "Weekly Sync", at(10, 0), at(10, 30))
	create(t, s, "Weekly Sync Prep", at(9, 0), at(9, 30))
	create(t, s, "Tomorrow", at(24+10, 0), at(24+11, 0))

	assert.Len(t, sync.ID, 36)
	assert.Equal(t, store.DefaultCalendarID, sync.CalendarID)
	assert.Equal(t, schedule.EventConfirmed, sync.Status)

	events, err := s.ListEvents(ctx, schedule.Interval{Start: day, End: day.Add(24 * time.Hour)}, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Weekly Sync Prep", events[0].Title)
	assert.True(t, at(10, 0).Equal(events[1].Start))
}

func TestStore_CreateValidates(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateEvent(context.Background(), &schedule.EventDraft{Title: "x", Start: at(10, 0), End: at(10, 0)})
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "dateTime", verr.Field)

	_, err = s.CreateEvent(context.Background(), &schedule.EventDraft{Title: " ", Start: at(10, 0), End: at(11, 0)})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestStore_CheckBusy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	create(t, s, "Standup", at(9, 0), at(9, 15))
	create(t, s, "Review", at(11, 0), at(12, 0))

	busy, err := s.CheckBusy(ctx, schedule.Interval{Start: at(9, 15), End: at(11, 30)}, nil)
	require.NoError(t, err)
	require.Len(t, busy, 1, "touching the window edge is not busy")
	assert.Equal(t, "Review", busy[0].Title)

	_, err = s.CheckBusy(ctx, schedule.Interval{Start: at(12, 0), End: at(11, 0)}, nil)
	assert.Error(t, err)
}

func TestStore_UpdateEvent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	e := create(t, s, "test meeting", at(10, 0), at(11, 0))

	title := "Project Review"
	start, end := at(14, 0), at(15, 0)
	updated, err := s.UpdateEvent(ctx, e.ID, &schedule.EventPatch{Title: &title, Start: &start, End: &end})
	require.NoError(t, err)
	assert.Equal(t, "Project Review", updated.Title)
	assert.True(t, start.Equal(updated.Start))

	busy, err := s.CheckBusy(ctx, schedule.Interval{Start: day, End: day.Add(24 * time.Hour)}, nil)
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.True(t, start.Equal(busy[0].Start))

	_, err = s.UpdateEvent(ctx, "missing", &schedule.EventPatch{Title: &title})
	assert.ErrorIs(t, err, schedule.ErrNotFound)

	bad := at(13, 0)
	_, err = s.UpdateEvent(ctx, e.ID, &schedule.EventPatch{End: &bad})
	var verr *schedule.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStore_DeleteEvent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	e := create(t, s, "Budget Review", at(10, 0), at(11, 0))

	require.NoError(t, s.DeleteEvent(ctx, e.ID))
	assert.ErrorIs(t, s.DeleteEvent(ctx, e.ID), schedule.ErrNotFound)

	events, err := s.ListEvents(ctx, schedule.Interval{Start: day, End: day.Add(24 * time.Hour)}, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStore_ListEventsFilters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	create(t, s, "Weekly Sync", at(10, 0), at(10, 30))
	create(t, s, "Planning", at(13, 0), at(15, 0))
	window := schedule.Interval{Start: day, End: day.Add(24 * time.Hour)}

	events, err := s.ListEvents(ctx, window, &schedule.EventFilter{TitleContains: "sync"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Weekly Sync", events[0].Title)

	events, err = s.ListEvents(ctx, window, &schedule.EventFilter{Expression: `duration_minutes >= 60 && title.startsWith("Plan")`})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Planning", events[0].Title)

	events, err = s.ListEvents(ctx, window, &schedule.EventFilter{Expression: `start < timestamp("2026-10-15T12:00:00Z")`})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Weekly Sync", events[0].Title)

	_, err = s.ListEvents(ctx, window, &schedule.EventFilter{Expression: `title +`})
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "filter", verr.Field)

	_, err = s.ListEvents(ctx, window, &schedule.EventFilter{Expression: `title`})
	require.ErrorAs(t, err, &verr)
}

func TestFilterCache_Reuses(t *testing.T) {
	c := store.NewFilterCache(2)
	a, err := c.Get(`title == "x"`)
	require.NoError(t, err)
	b, err := c.Get(` title == "x" `)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, c.Len())

	ok, err := a.Match(&schedule.Event{Title: "x", Start: at(9, 0), End: at(10, 0)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeed(t *testing.T) {
	const doc = `
calendar:
  - title: Weekly Sync
    start: 2026-10-15 10:00
    duration: 30m
    attendees: [amy@example.com]
  - title: Offsite
    start: 2026-10-16T09:00:00Z
    end: 2026-10-16T17:00:00Z
    location: HQ
mailbox:
  - id: m1
    from: alice@example.com
    subject: Budget draft
    receivedAt: 2026-10-14T09:00:00Z
    unread: true
`
	seed, err := store.LoadSeed(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, seed.Calendar, 2)
	require.Len(t, seed.Mailbox, 1)
	assert.True(t, seed.Mailbox[0].Unread)
	assert.True(t, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC).Equal(seed.Mailbox[0].ReceivedAt))

	s := newStore(t)
	n, err := s.SeedCalendar(context.Background(), seed, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := s.ListEvents(context.Background(), schedule.Interval{Start: day, End: day.Add(48 * time.Hour)}, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, at(10, 30).Equal(events[0].End))
	assert.Equal(t, []string{"amy@example.com"}, events[0].Attendees)
	assert.Equal(t, "HQ", events[1].Location)
}

func TestSeed_Invalid(t *testing.T) {
	seed, err := store.LoadSeed(strings.NewReader("calendar:\n  - title: Broken\n    start: soon\n    duration: 1h\n"))
	require.NoError(t, err)
	_, err = newStore(t).SeedCalendar(context.Background(), seed, time.UTC)
	assert.Error(t, err)

	seed, err = store.LoadSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed.Calendar)
}
