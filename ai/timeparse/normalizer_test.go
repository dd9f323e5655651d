package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("UTC+2", 2*3600)

// Wednesday 2026-10-14 15:04 local.
var testRef = time.Date(2026, 10, 14, 15, 4, 0, 0, testLoc)

func local(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2026, month, day, hour, minute, 0, 0, testLoc)
}

func TestNormalize(t *testing.T) {
	n := New(testLoc, 9, 17)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"today", local(10, 14, 0, 0)},
		{"tomorrow", local(10, 15, 0, 0)},
		{"day after tomorrow", local(10, 16, 0, 0)},
		{"tomorrow at 10am", local(10, 15, 10, 0)},
		{"tomorrow 10am", local(10, 15, 10, 0)},
		{"Tuesday at 2pm", local(10, 20, 14, 0)},
		{"Wednesday", local(10, 14, 0, 0)},
		{"next Wednesday", local(10, 21, 0, 0)},
		{"next Friday at 9:15 am", local(10, 16, 9, 15)},
		{"next week", local(10, 19, 0, 0)},
		{"next month", local(11, 1, 0, 0)},
		{"at 3", local(10, 14, 15, 0)},
		{"at 8", local(10, 14, 8, 0)},
		{"at 5 o'clock", local(10, 14, 17, 0)},
		{"14:30", local(10, 14, 14, 30)},
		{"2:30", local(10, 14, 14, 30)},
		{"09:00", local(10, 14, 9, 0)},
		{"12am", local(10, 14, 0, 0)},
		{"12pm", local(10, 14, 12, 0)},
		{"noon tomorrow", local(10, 15, 12, 0)},
		{"tomorrow at midnight", local(10, 15, 0, 0)},
		{"Friday afternoon", local(10, 16, 13, 0)},
		{"tomorrow at 3 in the afternoon", local(10, 15, 15, 0)},
		{"tonight", local(10, 14, 17, 0)},
		{"Oct 20 at 3pm", local(10, 20, 15, 0)},
		{"20 October", local(10, 20, 0, 0)},
		{"December 1st, 2026", local(12, 1, 0, 0)},
		{"March 3", time.Date(2027, 3, 3, 0, 0, 0, 0, testLoc)},
		{"10/20", local(10, 20, 0, 0)},
		{"in 3 days", local(10, 17, 0, 0)},
		{"in a week", local(10, 21, 0, 0)},
		{"in 2 hours", local(10, 14, 17, 4)},
		{"in 30 minutes", local(10, 14, 15, 34)},
		{"2026-10-20", local(10, 20, 0, 0)},
		{"2026-10-20T09:30:00", local(10, 20, 9, 30)},
		{"2026-10-20 09:30", local(10, 20, 9, 30)},
		{"2026-10-20T09:30:00Z", time.Date(2026, 10, 20, 9, 30, 0, 0, time.UTC)},
		{"2026-10-20T09:30:00+05:30", time.Date(2026, 10, 20, 4, 0, 0, 0, time.UTC)},
		{"2026-10-20T09:30:00.000-0400", time.Date(2026, 10, 20, 13, 30, 0, 0, time.UTC)},
		{"2026-10-20 09:30+05:30", time.Date(2026, 10, 20, 4, 0, 0, 0, time.UTC)},
		{"2026-10-20 10:00:00-04:00", time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC)},
		{"2026-10-16 10:00-11:00", local(10, 16, 10, 0)},
		{"sync 2026-10-16T10:00-11:00 with bob", time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := n.Normalize(tt.input, testRef)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNormalize_NoExpression(t *testing.T) {
	n := New(testLoc, 9, 17)
	for _, input := range []string{"", "   ", "hello world", "Budget Review", "2026-13-40", "at 99"} {
		_, ok := n.Normalize(input, testRef)
		assert.False(t, ok, "input %q", input)
	}
}

func TestNormalize_FirstMatchWins(t *testing.T) {
	n := New(testLoc, 9, 17)

	got, ok := n.Normalize("tomorrow or maybe Friday", testRef)
	require.True(t, ok)
	assert.True(t, local(10, 15, 0, 0).Equal(got))

	got, ok = n.Normalize("Monday at 9am and Tuesday at 3pm", testRef)
	require.True(t, ok)
	assert.True(t, local(10, 19, 9, 0).Equal(got))
}

func TestNormalize_DateOnlyIsLocalMidnight(t *testing.T) {
	n := New(testLoc, 9, 17)
	// 23:30 UTC is already 01:30 on the 15th locally.
	ref := time.Date(2026, 10, 14, 23, 30, 0, 0, time.UTC)

	got, ok := n.Normalize("tomorrow", ref)
	require.True(t, ok)
	assert.True(t, local(10, 16, 0, 0).Equal(got))
	assert.Equal(t, testLoc, got.Location())
}

func TestParse_Details(t *testing.T) {
	n := New(testLoc, 9, 17)

	m, ok := n.Parse("Friday afternoon", testRef)
	require.True(t, ok)
	assert.True(t, m.HasDate)
	assert.True(t, m.HasTime)
	assert.Equal(t, DayPartAfternoon, m.DayPart)

	m, ok = n.Parse("tomorrow", testRef)
	require.True(t, ok)
	assert.True(t, m.HasDate)
	assert.False(t, m.HasTime)

	m, ok = n.Parse("at 10am", testRef)
	require.True(t, ok)
	assert.False(t, m.HasDate)
	assert.True(t, m.HasTime)
}

func TestStrip(t *testing.T) {
	n := New(testLoc, 9, 17)
	text := "Schedule team sync tomorrow 10am for 30 minutes"

	m, ok := n.Parse(text, testRef)
	require.True(t, ok)
	assert.Equal(t, "Schedule team sync for 30 minutes", Strip(text, m.Spans))
	assert.Equal(t, "a b", Strip("  a   b ", nil))
}

func TestDayPartWindow(t *testing.T) {
	n := New(testLoc, 9, 17)

	start, end, ok := n.DayPartWindow(local(10, 16, 13, 0), DayPartAfternoon)
	require.True(t, ok)
	assert.True(t, local(10, 16, 13, 0).Equal(start))
	assert.True(t, local(10, 16, 17, 0).Equal(end))

	_, _, ok = n.DayPartWindow(testRef, DayPartNone)
	assert.False(t, ok)
}

func TestParseDayPart(t *testing.T) {
	assert.Equal(t, DayPartMorning, ParseDayPart(" Morning "))
	assert.Equal(t, DayPartEvening, ParseDayPart("tonight"))
	assert.Equal(t, DayPartNone, ParseDayPart("lunch"))
}
