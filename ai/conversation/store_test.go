package conversation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/ai/intent"
)

func sampleState(id string) *State {
	now := time.Date(2026, 10, 14, 15, 4, 0, 0, time.UTC)
	return &State{
		ID:            id,
		OriginalQuery: "Schedule a meeting",
		Operation:     intent.OpSchedule,
		Stage:         StageAwaitingFields,
		Pending:       intent.Entities{Title: intent.String("Team sync")},
		MissingFields: []string{intent.EntityDateTime, intent.EntityDuration},
		Alternatives:  []Slot{{Start: now, End: now.Add(30 * time.Minute)}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	s := sampleState(NewID())
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.OriginalQuery, got.OriginalQuery)
	assert.Equal(t, s.MissingFields, got.MissingFields)
	assert.Equal(t, "Team sync", *got.Pending.Title)
	require.Len(t, got.Alternatives, 1)
	assert.True(t, s.Alternatives[0].Start.Equal(got.Alternatives[0].Start))

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(10, time.Minute))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Minute)
	s := sampleState("c1")
	require.NoError(t, store.Save(ctx, s))

	s.MissingFields[0] = "mutated"
	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, intent.EntityDateTime, got.MissingFields[0])

	got.Pending.Title = intent.String("changed")
	again, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Team sync", *again.Pending.Title)
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, 20*time.Millisecond)
	require.NoError(t, store.Save(ctx, sampleState("c1")))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, "c1")
		return err == ErrNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, sampleState(id)))
	}
	assert.Equal(t, 2, store.Len())
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("SLOTSENSE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SLOTSENSE_TEST_REDIS_URL not set")
	}
	store, err := NewRedisStore(context.Background(), url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestStateHint(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 4, 0, 0, time.UTC)
	h := sampleState("c1").Hint(now)
	assert.Equal(t, intent.OpSchedule, h.Operation)
	assert.Equal(t, []string{intent.EntityDateTime, intent.EntityDuration}, h.MissingFields)
	assert.Equal(t, "Schedule a meeting", h.OriginalQuery)

	var nilState *State
	assert.Equal(t, now, nilState.Hint(now).Now)
}
