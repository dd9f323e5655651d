package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMailbox_Search(t *testing.T) {
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	box := NewMemoryMailbox(
		Message{ID: "1", From: "alice@example.com", Subject: "Budget draft", ReceivedAt: base, Unread: true},
		Message{ID: "2", From: "bob@example.com", Subject: "Lunch?", ReceivedAt: base.Add(time.Hour)},
		Message{ID: "3", From: "alice@example.com", Subject: "Offsite agenda", Snippet: "budget attached", ReceivedAt: base.Add(2 * time.Hour), Unread: true},
	)
	ctx := context.Background()

	all, err := box.Search(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID, "newest first")

	unread, err := box.Search(ctx, Query{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	budget, err := box.Search(ctx, Query{Text: "Budget", From: "alice"})
	require.NoError(t, err)
	require.Len(t, budget, 2)

	limited, err := box.Search(ctx, Query{Limit: 1, Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "3", limited[0].ID)

	ranged, err := box.Search(ctx, Query{Until: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "1", ranged[0].ID)
}

func TestMemoryMailbox_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryMailbox().Search(ctx, Query{})
	assert.ErrorIs(t, err, context.Canceled)
}
