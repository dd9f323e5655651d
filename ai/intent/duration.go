package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	durationPartRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours|hour|hrs|hr|h|minutes|minute|mins|min|m)`)

	// durationPhraseRe finds durations inside a sentence, e.g. "for 30 minutes".
	durationPhraseRe = regexp.MustCompile(`(?i)(?:\bfor\s+)?(?:\b(?:half an hour|half hour|an hour and a half|an hour|one hour|a quarter hour)\b|\b\d+(?:\.\d+)?\s*(?:hours?|hrs?|h|minutes?|mins?|m)\b(?:\s*(?:and\s+)?\d+\s*(?:minutes?|mins?|m)\b)?)`)
)

var durationWords = map[string]int{
	"half an hour":       30,
	"half hour":          30,
	"a quarter hour":     15,
	"an hour":            60,
	"one hour":           60,
	"an hour and a half": 90,
	"hour":               60,
}

// ParseDuration converts "30", "45 min", "1h30m", "1.5 hours" or "half an
// hour" into whole minutes. Huge values saturate at math.MaxInt32 so callers
// can reject them instead of wrapping.
func ParseDuration(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "for ")
	if s == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return saturate(float64(v)), v > 0
	}
	if v, ok := durationWords[s]; ok {
		return v, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return saturate(d.Minutes()), d >= time.Minute
	}

	total := 0.0
	matched := false
	for _, idx := range durationPartRe.FindAllStringSubmatchIndex(s, -1) {
		// Reject unit prefixes of longer words such as "5 months".
		if idx[1] < len(s) && unicode.IsLetter(rune(s[idx[1]])) {
			continue
		}
		value, err := strconv.ParseFloat(s[idx[2]:idx[3]], 64)
		if err != nil {
			continue
		}
		if strings.HasPrefix(s[idx[4]:idx[5]], "h") {
			value *= 60
		}
		total += value
		matched = true
	}
	minutes := saturate(total)
	return minutes, matched && minutes > 0
}

func saturate(minutes float64) int {
	if minutes >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(minutes))
}

// findDuration locates a duration phrase in text, skipping "in 30 minutes"
// which is a start offset rather than a length.
func findDuration(text string) (int, [2]int, bool) {
	for _, idx := range durationPhraseRe.FindAllStringIndex(text, -1) {
		before := strings.ToLower(strings.TrimSpace(text[:idx[0]]))
		if strings.HasSuffix(before, " in") || before == "in" {
			continue
		}
		if minutes, ok := ParseDuration(text[idx[0]:idx[1]]); ok {
			return minutes, [2]int{idx[0], idx[1]}, true
		}
	}
	return 0, [2]int{}, false
}
