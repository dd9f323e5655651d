package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/slotsense/ai/core/llm"
)

const extractionInstructions = `You extract calendar requests into JSON.
Return exactly one JSON object matching the schema below and nothing else.

Rules:
- operation is one of: query, schedule, update, cancel, check_availability, email_query, email_search.
- Resolve relative dates against the current time. Write dateTime as local "YYYY-MM-DDTHH:MM" without a zone, or "YYYY-MM-DD" when only a day is named.
- Leave dateTime null when the user gives no date or time. Never invent one.
- duration is in whole minutes.
- For update, currentTitle names the existing event and newTitle the new name. Use them for no other operation.
- For cancel, title names the event to remove.
- attendees are email addresses only.
- dayPart is morning, afternoon or evening when the user names one without a clock time.
- confidence is your certainty between 0 and 1.`

var intentSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"operation": {
			Type: jsonschema.String,
			Enum: []string{
				string(OpQuery), string(OpSchedule), string(OpUpdate), string(OpCancel),
				string(OpCheckAvailability), string(OpEmailQuery), string(OpEmailSearch),
			},
		},
		"confidence": {Type: jsonschema.Number},
		"entities": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				EntityTitle:        {Type: jsonschema.String},
				EntityDateTime:     {Type: jsonschema.String, Description: "local YYYY-MM-DDTHH:MM, or YYYY-MM-DD when no time is given"},
				EntityDuration:     {Type: jsonschema.Integer, Description: "minutes"},
				EntityCurrentTitle: {Type: jsonschema.String},
				EntityNewTitle:     {Type: jsonschema.String},
				EntityLocation:     {Type: jsonschema.String},
				EntityDescription:  {Type: jsonschema.String},
				EntityAttendees:    {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
				EntityDayPart:      {Type: jsonschema.String, Enum: []string{"morning", "afternoon", "evening"}},
			},
		},
	},
	Required: []string{"operation", "entities"},
}

// buildMessages renders the extraction prompt for text.
func buildMessages(text string, hint *Hint, now time.Time, loc *time.Location) []llm.Message {
	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\n\nSchema:\n")
	b.WriteString(llm.RenderSchema(intentSchema))

	local := now.In(loc)
	fmt.Fprintf(&b, "\n\nCurrent time: %s (%s), timezone %s.",
		local.Format("2006-01-02T15:04"), local.Weekday(), loc)

	if hint != nil && hint.Operation != "" {
		fmt.Fprintf(&b, "\n\nThe user is answering a follow-up for a pending %s request.", hint.Operation)
		if hint.OriginalQuery != "" {
			fmt.Fprintf(&b, "\nOriginal request: %q.", hint.OriginalQuery)
		}
		if hint.LastQuestion != "" {
			fmt.Fprintf(&b, "\nQuestion asked: %q.", hint.LastQuestion)
		}
		if len(hint.MissingFields) > 0 {
			fmt.Fprintf(&b, "\nStill missing: %s.", strings.Join(hint.MissingFields, ", "))
		}
		b.WriteString("\nKeep the pending operation unless the user clearly starts a different request.")
	}

	return []llm.Message{
		llm.SystemPrompt(b.String()),
		llm.UserMessage(text),
	}
}
