package intent

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/slotsense/ai/timeparse"
)

// Keyword confidence is kept below ActionableConfidence so every fallback
// parse is flagged.
const (
	keywordBaseConfidence   = 0.3
	keywordOperationBonus   = 0.1
	keywordEntityBonus      = 0.05
	keywordMaxConfidence    = 0.55
	followUpMaxTitleLength  = 120
	emailSearchMinimumTerms = 1
)

type operationRule struct {
	op Operation
	re *regexp.Regexp
}

// operationRules are tried in order; the first match decides the operation.
var operationRules = []operationRule{
	{OpEmailSearch, regexp.MustCompile(`(?i)\b(?:search|find|look\s+for)\b.*\b(?:e-?mails?|mail|messages?)\b`)},
	{OpEmailQuery, regexp.MustCompile(`(?i)\b(?:e-?mails?|inbox|unread|mailbox)\b`)},
	{OpCheckAvailability, regexp.MustCompile(`(?i)\b(?:am i (?:free|busy|available)|is .+ (?:free|available)|availability|free time|free slots?|when am i free|available)\b`)},
	{OpCancel, regexp.MustCompile(`(?i)\b(?:cancel|delete|remove|call off|drop)\b`)},
	{OpUpdate, regexp.MustCompile(`(?i)\b(?:change|rename|update|modify|move|reschedule|postpone|push back)\b`)},
	{OpSchedule, regexp.MustCompile(`(?i)\b(?:schedule|book|create|add|set up|arrange|plan|organi[sz]e)\b`)},
	{OpQuery, regexp.MustCompile(`(?i)\b(?:what(?:'s| is)?|show|list|agenda|do i have|anything|events?|meetings?|calendar)\b`)},
}

var (
	// explicitVerbRe detects a reply that starts a new request instead of
	// answering a pending question.
	explicitVerbRe = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:schedule|book|create|set up|arrange|cancel|delete|remove|call off|change|rename|update|modify|move|reschedule|postpone|search|check)\b`)

	scheduleLeadRe = regexp.MustCompile(`(?i)^\s*(?:please\s+|can you\s+|could you\s+)*(?:schedule|book|create|add|set up|arrange|plan|organi[sz]e)\s+(?:me\s+)?(?:a\s+|an\s+|the\s+|my\s+)?(?:new\s+)?`)
	updateRe       = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:change|rename|update|modify|move|reschedule|postpone|push back)\s+(?:the\s+|my\s+)?(.+?)\s+(?:to|into|as)\s+(.+)$`)
	updateLeadRe   = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:change|rename|update|modify|move|reschedule|postpone|push back)\s+(?:the\s+|my\s+)?`)
	cancelLeadRe   = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:cancel|delete|remove|call off|drop)\s+(?:the\s+|my\s+)?`)

	locationRe = regexp.MustCompile(`(?i)\b(?:in|at)\s+((?:conference\s+)?room\s+[\w-]+|the\s+office|office\s+[\w-]+)`)
	placeRe    = regexp.MustCompile(`\b(?:at|in)\s+(?:the\s+)?([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`)
	withRe     = regexp.MustCompile(`(?i)\s*\bwith\s*(?:,|and|\s)*$`)
	danglingRe = regexp.MustCompile(`(?i)(?:\s+(?:at|on|for|in|from|with|and|the|by|to))+\s*$`)
	searchRe   = regexp.MustCompile(`(?i)\b(?:about|from|regarding|mentioning|for)\s+(.+)$`)

	genericTitles = map[string]bool{
		"meeting": true, "a meeting": true, "event": true, "an event": true, "appointment": true,
		"an appointment": true, "call": true, "a call": true, "something": true, "it": true,
	}
)

// KeywordParser is the rule-based extractor used when the model is
// unavailable or returns nothing usable. It never fails.
type KeywordParser struct {
	normalizer *timeparse.Normalizer
}

// NewKeywordParser creates a KeywordParser that grounds dates with n.
func NewKeywordParser(n *timeparse.Normalizer) *KeywordParser {
	return &KeywordParser{normalizer: n}
}

// Parse extracts an intent from text. With a pending hint the reply is read
// as an answer to the pending question unless it starts with an explicit verb.
func (p *KeywordParser) Parse(text string, hint *Hint) *Intent {
	now := time.Now()
	if hint != nil && !hint.Now.IsZero() {
		now = hint.Now
	}

	op, matched := detectOperation(text)
	followUp := hint != nil && hint.Operation != "" && !explicitVerbRe.MatchString(text)
	if followUp {
		op = hint.Operation
	}

	in := &Intent{Operation: op, Source: SourceFallback, Query: text}
	e := &in.Entities

	spans := p.extractTime(text, now, e)
	if minutes, span, ok := findDuration(text); ok {
		e.Duration = Minutes(minutes)
		spans = append(spans, timeparse.Span{Start: span[0], End: span[1]})
	}
	rest := timeparse.Strip(text, spans)

	for _, addr := range emailRe.FindAllString(rest, -1) {
		e.Attendees = append(e.Attendees, addr)
	}
	rest = withRe.ReplaceAllString(strings.TrimSpace(emailRe.ReplaceAllString(rest, "")), "")
	rest = strings.Join(strings.Fields(strings.Trim(rest, " ,;")), " ")

	if loc, cut := findLocation(rest); loc != "" {
		e.Location = String(loc)
		rest = cut
	}

	switch {
	case followUp:
		p.fillFollowUp(text, rest, hint, e)
	case op == OpSchedule:
		e.Title = scheduleTitle(rest)
	case op == OpUpdate:
		p.updateTitles(text, now, e)
	case op == OpCancel:
		e.Title = cleanTitle(cancelLeadRe.ReplaceAllString(rest, ""))
	case op == OpEmailSearch:
		if m := searchRe.FindStringSubmatch(rest); m != nil && len(strings.Fields(m[1])) >= emailSearchMinimumTerms {
			e.Description = String(strings.TrimSpace(m[1]))
		}
	}

	in.Normalize()
	in.Confidence = keywordConfidence(matched, e.Count())
	return in
}

// NamesOperation reports whether text opens with an explicit request verb
// such as "schedule" or "cancel", i.e. starts a new request rather than
// answering a pending question.
func NamesOperation(text string) bool {
	return explicitVerbRe.MatchString(text)
}

func (p *KeywordParser) extractTime(text string, now time.Time, e *Entities) []timeparse.Span {
	m, ok := p.normalizer.Parse(text, now)
	if !ok {
		return nil
	}
	if m.HasDate || m.HasTime {
		e.DateTime = Time(m.Time)
		e.DateOnly = !m.HasTime
	}
	e.DayPart = m.DayPart
	return m.Spans
}

// fillFollowUp reads a reply to a pending question. Only missing fields are
// taken from free text; explicit entities found anywhere are kept as well.
func (p *KeywordParser) fillFollowUp(text, rest string, hint *Hint, e *Entities) {
	for _, field := range hint.MissingFields {
		switch field {
		case EntityTitle, EntityCurrentTitle:
			if e.Title == nil {
				title := cleanTitle(scheduleLeadRe.ReplaceAllString(rest, ""))
				if title != nil && len([]rune(*title)) <= followUpMaxTitleLength {
					e.Title = title
				}
			}
		case EntityDuration:
			if e.Duration == nil {
				if minutes, ok := ParseDuration(text); ok {
					e.Duration = Minutes(minutes)
				}
			}
		case EntityNewTitle:
			if e.NewTitle == nil && e.DateTime == nil {
				e.NewTitle = cleanTitle(rest)
			}
		}
	}
}

// updateTitles splits "change X to Y". Y is a new title unless it is only a
// date or time expression, in which case the event is being moved.
func (p *KeywordParser) updateTitles(text string, now time.Time, e *Entities) {
	m := updateRe.FindStringSubmatch(text)
	if m == nil {
		e.CurrentTitle = p.withoutTime(updateLeadRe.ReplaceAllString(text, ""), now)
		return
	}
	e.CurrentTitle = p.withoutTime(m[1], now)

	target := m[2]
	tm, ok := p.normalizer.Parse(target, now)
	if !ok {
		e.NewTitle = cleanTitle(target)
		return
	}
	remaining := timeparse.Strip(target, tm.Spans)
	if _, span, found := findDuration(remaining); found {
		remaining = timeparse.Strip(remaining, []timeparse.Span{{Start: span[0], End: span[1]}})
	}
	if cleanTitle(remaining) != nil {
		// "rename standup to Friday sync" is still a rename.
		e.NewTitle = cleanTitle(target)
		if e.DateTime != nil && !timeInTitle(p.normalizer, m[1], now) {
			e.DateTime = nil
			e.DayPart = timeparse.DayPartNone
		}
	}
}

func (p *KeywordParser) withoutTime(s string, now time.Time) *string {
	if m, ok := p.normalizer.Parse(s, now); ok {
		s = timeparse.Strip(s, m.Spans)
	}
	if _, span, ok := findDuration(s); ok {
		s = timeparse.Strip(s, []timeparse.Span{{Start: span[0], End: span[1]}})
	}
	return cleanTitle(s)
}

func timeInTitle(n *timeparse.Normalizer, s string, now time.Time) bool {
	_, ok := n.Parse(s, now)
	return ok
}

func detectOperation(text string) (Operation, bool) {
	for _, r := range operationRules {
		if r.re.MatchString(text) {
			return r.op, true
		}
	}
	return OpQuery, false
}

func findLocation(s string) (string, string) {
	for _, re := range []*regexp.Regexp{locationRe, placeRe} {
		if idx := re.FindStringSubmatchIndex(s); idx != nil {
			loc := strings.TrimSpace(s[idx[2]:idx[3]])
			cut := strings.Join(strings.Fields(s[:idx[0]]+" "+s[idx[1]:]), " ")
			return loc, cut
		}
	}
	return "", s
}

func scheduleTitle(rest string) *string {
	title := cleanTitle(scheduleLeadRe.ReplaceAllString(rest, ""))
	if title == nil || genericTitles[strings.ToLower(*title)] {
		return nil
	}
	return title
}

func cleanTitle(s string) *string {
	s = danglingRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Trim(s, " ,.;:!?\"'")
	if s == "" {
		return nil
	}
	return &s
}

func keywordConfidence(operationMatched bool, entities int) float64 {
	c := keywordBaseConfidence + keywordEntityBonus*float64(entities)
	if operationMatched {
		c += keywordOperationBonus
	}
	return math.Round(math.Min(c, keywordMaxConfidence)*100) / 100
}
