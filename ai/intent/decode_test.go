package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Nested(t *testing.T) {
	raw := `{"operation":"schedule","confidence":0.9,"entities":{"title":"Team Sync","dateTime":"2026-10-15T10:00","duration":30}}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, OpSchedule, in.Operation)
	assert.Equal(t, SourceModel, in.Source)
	assert.InDelta(t, 0.9, in.Confidence, 1e-9)
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "Team Sync", *in.Entities.Title)
	require.NotNil(t, in.Entities.DateTime)
	assert.True(t, utc(15, 10, 0).Equal(*in.Entities.DateTime))
	assert.Equal(t, 30, *in.Entities.Duration)
}

func TestDecode_FencedLooseKeys(t *testing.T) {
	raw := "Sure!\n```json\n{\"intent\": \"create_event\", \"entities\": {\"start_time\": \"2026-10-15 10:00\", \"Duration\": \"1h30m\", \"Title\": \"Review\"}}\n```"

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, OpSchedule, in.Operation)
	assert.Equal(t, 90, *in.Entities.Duration)
	assert.Equal(t, "Review", *in.Entities.Title)
	assert.True(t, utc(15, 10, 0).Equal(*in.Entities.DateTime))
	assert.InDelta(t, defaultModelConfidence, in.Confidence, 1e-9)
}

func TestDecode_RepairsMalformedJSON(t *testing.T) {
	raw := `{"operation": "cancel", "entities": {"title": "Weekly Sync",}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, OpCancel, in.Operation)
	require.NotNil(t, in.Entities.Title)
	assert.Equal(t, "Weekly Sync", *in.Entities.Title)
}

func TestDecode_DateOnlyVersusMidnight(t *testing.T) {
	tests := []struct {
		dateTime string
		dateOnly bool
	}{
		{"2026-10-15", true},
		{"2026-10-15T00:00", false},
		{"tomorrow", true},
		{"tomorrow at midnight", false},
	}
	for _, tt := range tests {
		t.Run(tt.dateTime, func(t *testing.T) {
			raw := `{"operation":"schedule","entities":{"title":"Deploy","dateTime":"` + tt.dateTime + `"}}`
			in, err := Decode(raw, newTestNormalizer(), testNow)
			require.NoError(t, err)
			require.NotNil(t, in.Entities.DateTime)
			assert.True(t, utc(15, 0, 0).Equal(*in.Entities.DateTime))
			assert.Equal(t, tt.dateOnly, in.Entities.DateOnly)
		})
	}
}

func TestDecode_DurationFromEnd(t *testing.T) {
	raw := `{"operation":"schedule","title":"Offsite","start":"2026-10-15T10:00","end":"2026-10-15T11:15"}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 75, *in.Entities.Duration)
}

func TestDecode_UpdateTitles(t *testing.T) {
	raw := `{"operation":"update","entities":{"current_title":"test meeting","new_title":"Project Review"}}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "test meeting", *in.Entities.CurrentTitle)
	assert.Equal(t, "Project Review", *in.Entities.NewTitle)
}

func TestDecode_DropsUpdateTitlesOnOtherOperations(t *testing.T) {
	raw := `{"operation":"schedule","entities":{"title":"Sync","newTitle":"Other","currentTitle":"Old"}}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Nil(t, in.Entities.NewTitle)
	assert.Nil(t, in.Entities.CurrentTitle)
}

func TestDecode_AttendeesAndNulls(t *testing.T) {
	raw := `{"operation":"schedule","entities":{"attendees":"a@x.com, B@x.com and nobody","location":"null","dateTime":null}}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, in.Entities.Attendees)
	assert.Nil(t, in.Entities.Location)
	assert.Nil(t, in.Entities.DateTime)
}

func TestDecode_AttendeeObjects(t *testing.T) {
	raw := `{"operation":"schedule","entities":{"participants":[{"name":"Amy","email":"amy@x.com"},"bob@x.com"]}}`

	in, err := Decode(raw, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy@x.com", "bob@x.com"}, in.Entities.Attendees)
}

func TestDecode_ClampsConfidence(t *testing.T) {
	in, err := Decode(`{"operation":"query","confidence":1.7}`, newTestNormalizer(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1.0, in.Confidence)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("I could not understand that.", newTestNormalizer(), testNow)
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = Decode(`{"operation":"archive"}`, newTestNormalizer(), testNow)
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = Decode(`{"entities":{}}`, newTestNormalizer(), testNow)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}
