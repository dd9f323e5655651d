package intent

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/pkg/errors"

	"github.com/hrygo/slotsense/ai/internal/strutil"
	"github.com/hrygo/slotsense/ai/timeparse"
)

var (
	// ErrNoJSON means the model answered without any JSON object.
	ErrNoJSON = errors.New("no JSON object in model output")

	// ErrUnknownOperation means the model output named no usable operation.
	ErrUnknownOperation = errors.New("unknown operation")
)

// defaultModelConfidence is assumed when the model omits a confidence.
const defaultModelConfidence = 0.75

// operationAliases maps canonical (lowercase, alphanumeric only) names to operations.
var operationAliases = map[string]Operation{
	"query": OpQuery, "list": OpQuery, "listevents": OpQuery, "show": OpQuery, "getevents": OpQuery,
	"calendarquery": OpQuery, "schedulequery": OpQuery,
	"schedule": OpSchedule, "create": OpSchedule, "add": OpSchedule, "book": OpSchedule,
	"createevent": OpSchedule, "schedulecreate": OpSchedule, "scheduleevent": OpSchedule,
	"update": OpUpdate, "modify": OpUpdate, "edit": OpUpdate, "reschedule": OpUpdate, "move": OpUpdate,
	"rename": OpUpdate, "updateevent": OpUpdate, "scheduleupdate": OpUpdate,
	"cancel": OpCancel, "delete": OpCancel, "remove": OpCancel, "deleteevent": OpCancel, "cancelevent": OpCancel,
	"checkavailability": OpCheckAvailability, "availability": OpCheckAvailability, "freebusy": OpCheckAvailability,
	"checkfree": OpCheckAvailability, "findfreetime": OpCheckAvailability,
	"emailquery": OpEmailQuery, "email": OpEmailQuery, "checkemail": OpEmailQuery, "inbox": OpEmailQuery,
	"emailsearch": OpEmailSearch, "searchemail": OpEmailSearch, "searchemails": OpEmailSearch,
}

// entityAliases lists accepted canonical keys per entity, most specific first.
var entityAliases = map[string][]string{
	EntityDateTime:     {"datetime", "startdatetime", "starttime", "start", "when"},
	EntityDuration:     {"duration", "durationminutes", "durationmins", "length", "minutes"},
	EntityTitle:        {"title", "eventtitle", "name", "subject", "summary"},
	EntityCurrentTitle: {"currenttitle", "oldtitle", "existingtitle", "targettitle"},
	EntityNewTitle:     {"newtitle", "renameto"},
	EntityLocation:     {"location", "place", "venue", "room"},
	EntityDescription:  {"description", "notes", "details", "agenda"},
	EntityAttendees:    {"attendees", "participants", "guests", "invitees", "emails"},
	EntityDayPart:      {"daypart", "partofday", "timeofday"},
}

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	canonKeyRe  = regexp.MustCompile(`[^a-z0-9]`)
	attendeeSep = regexp.MustCompile(`\s*(?:[,;]|\band\b)\s*`)
)

// Decode turns raw model output into a validated Intent. It is the single
// place loosely shaped model JSON is accepted: keys in any case style, flat or
// nested under "entities", durations as numbers or text, and date strings that
// are resolved through the normalizer.
func Decode(raw string, n *timeparse.Normalizer, now time.Time) (*Intent, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	top := canonicalize(obj)
	fields := make(map[string]any, len(top))
	for k, v := range top {
		fields[k] = v
	}
	for _, key := range []string{"entities", "parameters", "params", "slots"} {
		if nested, ok := top[key].(map[string]any); ok {
			for k, v := range canonicalize(nested) {
				fields[k] = v
			}
		}
	}

	op, ok := operationAliases[canonKey(toString(lookup(top, "operation", "intent", "action", "type", "op")))]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOperation, "model output %q", strutil.Truncate(raw, 120))
	}

	in := &Intent{
		Operation:  op,
		Source:     SourceModel,
		Confidence: defaultModelConfidence,
	}
	if c, ok := toFloat(lookup(top, "confidence", "score")); ok {
		in.Confidence = c
	}

	e := &in.Entities
	e.DateTime, e.DateOnly = decodeDateTime(fields, n, now)
	e.Duration = decodeDuration(fields, n, now, e.DateTime)
	e.Title = optString(lookupEntity(fields, EntityTitle))
	e.CurrentTitle = optString(lookupEntity(fields, EntityCurrentTitle))
	e.NewTitle = optString(lookupEntity(fields, EntityNewTitle))
	e.Location = optString(lookupEntity(fields, EntityLocation))
	e.Description = optString(lookupEntity(fields, EntityDescription))
	e.Attendees = decodeAttendees(lookupEntity(fields, EntityAttendees))
	e.DayPart = timeparse.ParseDayPart(toString(lookupEntity(fields, EntityDayPart)))

	in.Normalize()
	return in, nil
}

func decodeObject(raw string) (map[string]any, error) {
	text := raw
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		text = m[1]
	}
	candidate := extractJSON(text)
	if candidate == "" {
		return nil, ErrNoJSON
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		return obj, nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to repair model JSON")
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, errors.Wrap(err, "failed to decode model JSON")
	}
	slog.Debug("intent: repaired malformed model JSON", "original_length", len(candidate))
	return obj, nil
}

// extractJSON returns the span from the first "{" to the last "}". A missing
// closing brace keeps the tail so truncated output can still be repaired.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(content, "}")
	if end <= start {
		return content[start:]
	}
	return content[start : end+1]
}

func canonicalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[canonKey(k)] = v
	}
	return out
}

func canonKey(k string) string {
	return canonKeyRe.ReplaceAllString(strings.ToLower(k), "")
}

func lookup(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func lookupEntity(m map[string]any, entity string) any {
	return lookup(m, entityAliases[entity]...)
}

// decodeDateTime also reports whether the value named a day without a time.
func decodeDateTime(fields map[string]any, n *timeparse.Normalizer, now time.Time) (*time.Time, bool) {
	v := lookupEntity(fields, EntityDateTime)
	if v == nil {
		// Separate date and time fields.
		date, clock := toString(fields["date"]), toString(fields["time"])
		if date == "" && clock == "" {
			return nil, false
		}
		v = strings.TrimSpace(date + " " + clock)
	}
	if s, ok := v.(string); ok {
		if m, ok := n.Parse(s, now); ok && (m.HasDate || m.HasTime) {
			return &m.Time, !m.HasTime
		}
	}
	return resolveInstant(v, n, now), false
}

func decodeDuration(fields map[string]any, n *timeparse.Normalizer, now time.Time, start *time.Time) *int {
	switch v := lookupEntity(fields, EntityDuration).(type) {
	case float64:
		if m := saturate(v); m > 0 {
			return &m
		}
	case string:
		if m, ok := ParseDuration(v); ok {
			return &m
		}
	}
	if start == nil {
		return nil
	}
	end := resolveInstant(lookup(fields, "enddatetime", "endtime", "end"), n, now)
	if end == nil || !end.After(*start) {
		return nil
	}
	m := saturate(end.Sub(*start).Minutes())
	return &m
}

func resolveInstant(v any, n *timeparse.Normalizer, now time.Time) *time.Time {
	switch val := v.(type) {
	case string:
		if t, ok := n.Normalize(val, now); ok {
			return &t
		}
		if strings.TrimSpace(val) != "" {
			slog.Debug("intent: unparseable date from model", "value", val)
		}
	case float64:
		sec := int64(val)
		if sec > 1e12 {
			sec /= 1000
		}
		if sec > 0 {
			t := time.Unix(sec, 0).In(n.Location())
			return &t
		}
	}
	return nil
}

func decodeAttendees(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		out = attendeeSep.Split(val, -1)
	case []any:
		for _, item := range val {
			switch a := item.(type) {
			case string:
				out = append(out, a)
			case map[string]any:
				out = append(out, toString(lookup(canonicalize(a), "email", "address")))
			}
		}
	}
	return out
}

func optString(v any) *string {
	s := toString(v)
	if s == "" {
		return nil
	}
	return &s
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}
