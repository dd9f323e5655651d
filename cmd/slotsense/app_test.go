package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/slotsense/ai/agents/scheduler"
	"github.com/hrygo/slotsense/internal/profile"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const seedDoc = `
calendar:
  - title: Planning Review
    start: 2099-03-02 10:00
    duration: 1h
mailbox:
  - id: m1
    from: alice@example.com
    subject: Budget draft
    receivedAt: 2026-10-14T09:00:00Z
    unread: true
  - id: m2
    from: bob@example.com
    subject: Lunch
    receivedAt: 2026-10-13T12:00:00Z
`

func testProfile(t *testing.T) *profile.Profile {
	t.Helper()
	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seedFile, []byte(seedDoc), 0o600))

	p := &profile.Profile{
		Mode:      "dev",
		Driver:    "memory",
		Timezone:  "UTC",
		WorkStart: 9,
		WorkEnd:   17,
		SeedFile:  seedFile,
	}
	p.FromEnv()
	p.LLMAPIKey = ""
	p.ConversationBackend = "memory"
	require.NoError(t, p.Validate())
	return p
}

func TestNewApp_SeedsCalendarAndMailbox(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testProfile(t))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	window := schedule.Interval{Start: time.Date(2099, 3, 2, 0, 0, 0, 0, time.UTC), End: time.Date(2099, 3, 3, 0, 0, 0, 0, time.UTC)}
	events, err := a.store.ListEvents(ctx, window, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Planning Review", events[0].Title)

	// A second seed run finds the calendar populated.
	_, err = a.seed(ctx)
	require.NoError(t, err)
	events, err = a.store.ListEvents(ctx, window, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	d, err := a.scheduler.Resolve(ctx, scheduler.ResolveRequest{Query: "show my unread emails"})
	require.NoError(t, err)
	assert.Equal(t, scheduler.KindEmails, d.Kind)
	require.NotNil(t, d.Emails)
	require.Len(t, d.Emails.Messages, 1)
	assert.Equal(t, "Budget draft", d.Emails.Messages[0].Subject)
	assert.True(t, d.LowConfidence)
}

func TestNewApp_MissingSeedFile(t *testing.T) {
	p := testProfile(t)
	p.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newApp(context.Background(), p)
	assert.Error(t, err)
}

func TestNewApp_EventFilter(t *testing.T) {
	p := testProfile(t)
	p.EventFilter = `title.startsWith(`
	_, err := newApp(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event filter")

	for _, tt := range []struct {
		filter string
		want   int
	}{
		{"", 1},
		{`!title.startsWith("Planning")`, 0},
	} {
		p = testProfile(t)
		p.EventFilter = tt.filter
		a, err := newApp(context.Background(), p)
		require.NoError(t, err)
		t.Cleanup(a.Close)

		d, err := a.scheduler.Resolve(context.Background(), scheduler.ResolveRequest{Query: "what do I have on 2099-03-02?"})
		require.NoError(t, err)
		require.Equal(t, scheduler.KindEvents, d.Kind)
		assert.Len(t, d.Events.Events, tt.want, "filter %q", tt.filter)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"version", "--check", "0.0.1"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "slotsense")

	rootCmd.SetArgs([]string{"version", "--check", "999.0.0"})
	assert.Error(t, rootCmd.Execute())
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("debug"))
	assert.NoError(t, setupLogging("WARN"))
	assert.Error(t, setupLogging("loud"))
	assert.NoError(t, setupLogging("info"))
}
