package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseKeywords(t *testing.T, text string, hint *Hint) *Intent {
	t.Helper()
	if hint == nil {
		hint = &Hint{}
	}
	hint.Now = testNow
	in := NewKeywordParser(newTestNormalizer()).Parse(text, hint)
	require.NotNil(t, in)
	assert.Equal(t, SourceFallback, in.Source)
	assert.Less(t, in.Confidence, ActionableConfidence)
	assert.True(t, in.LowConfidence())
	return in
}

func TestKeywordParser_Schedule(t *testing.T) {
	in := parseKeywords(t, "Schedule team sync tomorrow 10am for 30 minutes", nil)

	assert.Equal(t, OpSchedule, in.Operation)
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "team sync", *in.Entities.Title)
	require.NotNil(t, in.Entities.DateTime)
	assert.True(t, utc(15, 10, 0).Equal(*in.Entities.DateTime))
	require.NotNil(t, in.Entities.Duration)
	assert.Equal(t, 30, *in.Entities.Duration)
	assert.InDelta(t, 0.55, in.Confidence, 1e-9)
}

func TestKeywordParser_OverlongDurationIsMissing(t *testing.T) {
	in := parseKeywords(t, "Schedule sync tomorrow at 10am for 9999999999999 minutes", nil)

	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "sync", *in.Entities.Title)
	assert.Nil(t, in.Entities.Duration)
}

func TestKeywordParser_TimeRangeIsNotAZone(t *testing.T) {
	in := parseKeywords(t, "Schedule sync 2026-10-16 10:00-11:00", nil)

	require.NotNil(t, in.Entities.DateTime)
	assert.True(t, time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC).Equal(*in.Entities.DateTime))
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "sync", *in.Entities.Title)
}

func TestKeywordParser_GenericTitleIsMissing(t *testing.T) {
	in := parseKeywords(t, "Schedule a meeting", nil)

	assert.Equal(t, OpSchedule, in.Operation)
	assert.Nil(t, in.Entities.Title)
	assert.Nil(t, in.Entities.DateTime)
	assert.InDelta(t, 0.4, in.Confidence, 1e-9)
}

func TestKeywordParser_AttendeesAndLocation(t *testing.T) {
	in := parseKeywords(t, "Schedule design review with bob@example.com and amy@example.com tomorrow at 2pm for 1 hour", nil)
	assert.Equal(t, "design review", *in.Entities.Title)
	assert.Equal(t, []string{"bob@example.com", "amy@example.com"}, in.Entities.Attendees)
	assert.True(t, utc(15, 14, 0).Equal(*in.Entities.DateTime))
	assert.Equal(t, 60, *in.Entities.Duration)

	in = parseKeywords(t, "Schedule lunch at Luigi's tomorrow at noon for 1 hour", nil)
	assert.Equal(t, "lunch", *in.Entities.Title)
	require.NotNil(t, in.Entities.Location)
	assert.Equal(t, "Luigi's", *in.Entities.Location)
	assert.True(t, utc(15, 12, 0).Equal(*in.Entities.DateTime))
}

func TestKeywordParser_Cancel(t *testing.T) {
	in := parseKeywords(t, "Cancel Weekly Sync", nil)
	assert.Equal(t, OpCancel, in.Operation)
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "Weekly Sync", *in.Entities.Title)
}

func TestKeywordParser_UpdateRename(t *testing.T) {
	in := parseKeywords(t, "change test meeting to Project Review", nil)
	assert.Equal(t, OpUpdate, in.Operation)
	require.NotNil(t, in.Entities.CurrentTitle)
	assert.Equal(t, "test meeting", *in.Entities.CurrentTitle)
	require.NotNil(t, in.Entities.NewTitle)
	assert.Equal(t, "Project Review", *in.Entities.NewTitle)
	assert.Nil(t, in.Entities.DateTime)
}

func TestKeywordParser_UpdateMove(t *testing.T) {
	in := parseKeywords(t, "move standup to 3pm tomorrow", nil)
	assert.Equal(t, OpUpdate, in.Operation)
	assert.Equal(t, "standup", *in.Entities.CurrentTitle)
	assert.Nil(t, in.Entities.NewTitle)
	require.NotNil(t, in.Entities.DateTime)
	assert.True(t, utc(15, 15, 0).Equal(*in.Entities.DateTime))
}

func TestKeywordParser_Availability(t *testing.T) {
	in := parseKeywords(t, "am I free Friday afternoon?", nil)
	assert.Equal(t, OpCheckAvailability, in.Operation)
	assert.Equal(t, "afternoon", string(in.Entities.DayPart))
	require.NotNil(t, in.Entities.DateTime)
	assert.True(t, utc(16, 13, 0).Equal(*in.Entities.DateTime))
}

func TestKeywordParser_QueryAndEmail(t *testing.T) {
	assert.Equal(t, OpQuery, parseKeywords(t, "what's on tomorrow", nil).Operation)
	assert.Equal(t, OpEmailQuery, parseKeywords(t, "any unread email?", nil).Operation)
	assert.Equal(t, OpEmailSearch, parseKeywords(t, "search my emails from alice about budget", nil).Operation)

	in := parseKeywords(t, "hello there", nil)
	assert.Equal(t, OpQuery, in.Operation)
	assert.InDelta(t, 0.3, in.Confidence, 1e-9)
}

func TestKeywordParser_FollowUpReplies(t *testing.T) {
	hint := func(missing ...string) *Hint {
		return &Hint{Operation: OpSchedule, MissingFields: missing, OriginalQuery: "Schedule a meeting"}
	}

	in := parseKeywords(t, "Team sync", hint(EntityTitle, EntityDateTime, EntityDuration))
	assert.Equal(t, OpSchedule, in.Operation)
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "Team sync", *in.Entities.Title)

	in = parseKeywords(t, "tomorrow at 10am", hint(EntityDateTime, EntityDuration))
	assert.Nil(t, in.Entities.Title)
	assert.True(t, utc(15, 10, 0).Equal(*in.Entities.DateTime))

	in = parseKeywords(t, "45", hint(EntityDuration))
	assert.Nil(t, in.Entities.Title)
	require.NotNil(t, in.Entities.Duration)
	assert.Equal(t, 45, *in.Entities.Duration)
}

func TestKeywordParser_ExplicitVerbOverridesPending(t *testing.T) {
	in := parseKeywords(t, "Cancel Weekly Sync", &Hint{Operation: OpSchedule, MissingFields: []string{EntityDuration}})
	assert.Equal(t, OpCancel, in.Operation)
	assert.Equal(t, "Weekly Sync", *in.Entities.Title)
}

func TestNamesOperation(t *testing.T) {
	assert.True(t, NamesOperation("Cancel Weekly Sync"))
	assert.True(t, NamesOperation("please schedule lunch"))
	assert.False(t, NamesOperation("tomorrow at 10am"))
	assert.False(t, NamesOperation("Team sync"))
}
