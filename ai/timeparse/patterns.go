package timeparse

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	isoRe = regexp.MustCompile(`(?i)\b(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{1,2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?`)

	relativeDayRe = regexp.MustCompile(`(?i)\b(day after tomorrow|today|tonight|tomorrow|tmrw|yesterday)\b`)
	weekdayRe     = regexp.MustCompile(`(?i)\b(?:(next|this|coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	relativeRe    = regexp.MustCompile(`(?i)\bnext\s+(week|month)\b`)
	offsetRe      = regexp.MustCompile(`(?i)\bin\s+(\d+|an?|one|two|three)\s+(minutes?|mins?|hours?|hrs?|days?|weeks?)\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\b(?:,?\s+(\d{4})\b)?`)
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)

	meridiemRe  = regexp.MustCompile(`(?i)(?:\bat\s+)?\b(\d{1,2})(?:[:.](\d{2}))?\s*(am\b|pm\b|a\.m\.?|p\.m\.?)`)
	clockRe     = regexp.MustCompile(`(?i)(?:\bat\s+)?\b(\d{1,2}):([0-5]\d)\b`)
	bareAtRe    = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?:\s*o'?clock)?\b`)
	namedTimeRe = regexp.MustCompile(`(?i)(?:\bat\s+)?\b(noon|midday|midnight)\b`)
	dayPartRe   = regexp.MustCompile(`(?i)\b(?:in\s+the\s+|this\s+)?(morning|afternoon|evening|tonight)\b`)

	meridiemAheadRe = regexp.MustCompile(`(?i)^\s*(?:[:./]|\d|a\.?m\b|p\.?m\b)`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var smallNumbers = map[string]int{"a": 1, "an": 1, "one": 1, "two": 2, "three": 3}

type dateMatch struct {
	// instant is set when the phrase fixes an exact instant.
	instant *time.Time
	day     time.Time
	span    Span
}

type clockMatch struct {
	meridiem  string
	span      Span
	hour      int
	minute    int
	priority  int
	ambiguous bool
}

func (n *Normalizer) findDates(text string, ref time.Time) []dateMatch {
	today := startOfDay(ref, n.loc)
	var out []dateMatch

	for _, idx := range isoRe.FindAllStringSubmatchIndex(text, -1) {
		if dm, ok := n.isoDate(text, idx); ok {
			out = append(out, dm)
		}
	}

	for _, idx := range relativeDayRe.FindAllStringSubmatchIndex(text, -1) {
		offset := 0
		switch strings.ToLower(text[idx[2]:idx[3]]) {
		case "tomorrow", "tmrw":
			offset = 1
		case "day after tomorrow":
			offset = 2
		case "yesterday":
			offset = -1
		}
		out = append(out, dateMatch{day: today.AddDate(0, 0, offset), span: Span{idx[0], idx[1]}})
	}

	for _, idx := range weekdayRe.FindAllStringSubmatchIndex(text, -1) {
		target := weekdays[strings.ToLower(text[idx[4]:idx[5]])]
		diff := (int(target) - int(today.Weekday()) + 7) % 7
		if idx[2] >= 0 && strings.EqualFold(text[idx[2]:idx[3]], "next") && diff == 0 {
			diff = 7
		}
		out = append(out, dateMatch{day: today.AddDate(0, 0, diff), span: Span{idx[0], idx[1]}})
	}

	for _, idx := range relativeRe.FindAllStringSubmatchIndex(text, -1) {
		var day time.Time
		if strings.EqualFold(text[idx[2]:idx[3]], "week") {
			// Monday of next week.
			diff := (8 - int(today.Weekday())) % 7
			if diff == 0 {
				diff = 7
			}
			day = today.AddDate(0, 0, diff)
		} else {
			day = time.Date(today.Year(), today.Month()+1, 1, 0, 0, 0, 0, n.loc)
		}
		out = append(out, dateMatch{day: day, span: Span{idx[0], idx[1]}})
	}

	for _, idx := range offsetRe.FindAllStringSubmatchIndex(text, -1) {
		count, ok := parseCount(text[idx[2]:idx[3]])
		if !ok {
			continue
		}
		span := Span{idx[0], idx[1]}
		switch unit := strings.ToLower(text[idx[4]:idx[5]]); {
		case strings.HasPrefix(unit, "min"):
			at := ref.Add(time.Duration(count) * time.Minute)
			out = append(out, dateMatch{instant: &at, day: startOfDay(at, n.loc), span: span})
		case strings.HasPrefix(unit, "h"):
			at := ref.Add(time.Duration(count) * time.Hour)
			out = append(out, dateMatch{instant: &at, day: startOfDay(at, n.loc), span: span})
		case strings.HasPrefix(unit, "day"):
			out = append(out, dateMatch{day: today.AddDate(0, 0, count), span: span})
		case strings.HasPrefix(unit, "week"):
			out = append(out, dateMatch{day: today.AddDate(0, 0, 7*count), span: span})
		}
	}

	for _, idx := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		if dm, ok := n.calendarDate(text, idx[2:4], idx[4:6], idx[6:8], today); ok {
			dm.span = Span{idx[0], idx[1]}
			out = append(out, dm)
		}
	}
	for _, idx := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		if dm, ok := n.calendarDate(text, idx[4:6], idx[2:4], idx[6:8], today); ok {
			dm.span = Span{idx[0], idx[1]}
			out = append(out, dm)
		}
	}

	for _, idx := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		month, _ := strconv.Atoi(text[idx[2]:idx[3]])
		dayNum, _ := strconv.Atoi(text[idx[4]:idx[5]])
		year := 0
		if idx[6] >= 0 {
			year, _ = strconv.Atoi(text[idx[6]:idx[7]])
			if year < 100 {
				year += 2000
			}
		}
		if day, ok := n.buildDate(year, time.Month(month), dayNum, today); ok {
			out = append(out, dateMatch{day: day, span: Span{idx[0], idx[1]}})
		}
	}

	return out
}

// isoDate handles 2006-01-02 with optional time and zone. A zone suffix is
// trusted as absolute; otherwise the fields are local.
func (n *Normalizer) isoDate(text string, idx []int) (dateMatch, bool) {
	field := func(i int) int {
		if idx[2*i] < 0 {
			return 0
		}
		v, _ := strconv.Atoi(text[idx[2*i]:idx[2*i+1]])
		return v
	}
	year, month, day := field(1), time.Month(field(2)), field(3)
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return dateMatch{}, false
	}

	dm := dateMatch{span: Span{idx[0], idx[1]}}
	dm.day = time.Date(year, month, day, 0, 0, 0, 0, n.loc)
	if dm.day.Day() != day {
		return dateMatch{}, false
	}
	if idx[8] < 0 {
		return dm, true
	}

	hour, minute, second := field(4), field(5), field(6)
	if hour > 23 || minute > 59 || second > 59 {
		return dateMatch{}, false
	}
	loc := n.loc
	if idx[14] >= 0 && isZoneSuffix(text, idx) {
		loc = parseZone(text[idx[14]:idx[15]])
	}
	at := time.Date(year, month, day, hour, minute, second, 0, loc)
	dm.instant = &at
	return dm, true
}

func (n *Normalizer) calendarDate(text string, monthIdx, dayIdx, yearIdx []int, today time.Time) (dateMatch, bool) {
	name := strings.ToLower(text[monthIdx[0]:monthIdx[1]])
	month, ok := months[name[:3]]
	if !ok {
		return dateMatch{}, false
	}
	dayNum, _ := strconv.Atoi(text[dayIdx[0]:dayIdx[1]])
	year := 0
	if yearIdx[0] >= 0 {
		year, _ = strconv.Atoi(text[yearIdx[0]:yearIdx[1]])
	}
	day, ok := n.buildDate(year, month, dayNum, today)
	return dateMatch{day: day}, ok
}

// buildDate validates the fields. Without a year the next occurrence on or
// after today is used.
func (n *Normalizer) buildDate(year int, month time.Month, day int, today time.Time) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	explicitYear := year != 0
	if !explicitYear {
		year = today.Year()
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, n.loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	if !explicitYear && t.Before(today) {
		t = time.Date(year+1, month, day, 0, 0, 0, 0, n.loc)
	}
	return t, true
}

func (n *Normalizer) findTimes(text string) []clockMatch {
	var out []clockMatch

	for _, idx := range meridiemRe.FindAllStringSubmatchIndex(text, -1) {
		hour, _ := strconv.Atoi(text[idx[2]:idx[3]])
		minute := 0
		if idx[4] >= 0 {
			minute, _ = strconv.Atoi(text[idx[4]:idx[5]])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			continue
		}
		meridiem := strings.ToLower(text[idx[6] : idx[6]+1])
		switch {
		case meridiem == "a" && hour == 12:
			hour = 0
		case meridiem == "p" && hour != 12:
			hour += 12
		}
		out = append(out, clockMatch{span: Span{idx[0], idx[1]}, hour: hour, minute: minute, meridiem: meridiem})
	}

	for _, idx := range clockRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[idx[2]:idx[3]]
		hour, _ := strconv.Atoi(raw)
		minute, _ := strconv.Atoi(text[idx[4]:idx[5]])
		if hour > 23 {
			continue
		}
		out = append(out, clockMatch{
			span:      Span{idx[0], idx[1]},
			hour:      hour,
			minute:    minute,
			priority:  1,
			ambiguous: hour < 12 && !strings.HasPrefix(raw, "0"),
		})
	}

	for _, idx := range bareAtRe.FindAllStringSubmatchIndex(text, -1) {
		if meridiemAheadRe.MatchString(text[idx[1]:]) {
			continue
		}
		hour, _ := strconv.Atoi(text[idx[2]:idx[3]])
		if hour > 23 {
			continue
		}
		out = append(out, clockMatch{span: Span{idx[0], idx[1]}, hour: hour, priority: 2, ambiguous: true})
	}

	for _, idx := range namedTimeRe.FindAllStringSubmatchIndex(text, -1) {
		hour := 12
		if strings.EqualFold(text[idx[2]:idx[3]], "midnight") {
			hour = 0
		}
		out = append(out, clockMatch{span: Span{idx[0], idx[1]}, hour: hour, meridiem: "named"})
	}

	return out
}

func findDayPart(text string) (DayPart, Span) {
	idx := dayPartRe.FindStringSubmatchIndex(text)
	if idx == nil {
		return DayPartNone, Span{}
	}
	return ParseDayPart(text[idx[2]:idx[3]]), Span{idx[0], idx[1]}
}

func earliestDate(dates []dateMatch) *dateMatch {
	if len(dates) == 0 {
		return nil
	}
	sort.SliceStable(dates, func(i, j int) bool {
		if dates[i].span.Start != dates[j].span.Start {
			return dates[i].span.Start < dates[j].span.Start
		}
		return dates[i].span.End > dates[j].span.End
	})
	return &dates[0]
}

func earliestTime(times []clockMatch, date *dateMatch) *clockMatch {
	var candidates []clockMatch
	for _, c := range times {
		if date != nil && c.span.Start < date.span.End && c.span.End > date.span.Start {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		return candidates[i].priority < candidates[j].priority
	})
	return &candidates[0]
}

// isZoneSuffix tells a UTC offset from the end of a time range. In
// "2026-10-16 10:00-11:00" the "-11:00" closes the range; a negative offset
// counts only after a "T" separator or a seconds field.
func isZoneSuffix(text string, idx []int) bool {
	end := idx[15]
	if end < len(text) && (text[end] == ':' || (text[end] >= '0' && text[end] <= '9')) {
		return false
	}
	zone := text[idx[14]:end]
	if strings.EqualFold(zone, "z") || zone[0] == '+' {
		return true
	}
	if sep := text[idx[8]-1]; sep == 'T' || sep == 't' {
		return true
	}
	return idx[12] >= 0
}

func parseZone(z string) *time.Location {
	if strings.EqualFold(z, "z") {
		return time.UTC
	}
	sign := 1
	if z[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(z[1:], ":", "")
	hours, _ := strconv.Atoi(digits[:2])
	minutes, _ := strconv.Atoi(digits[2:])
	return time.FixedZone("", sign*(hours*3600+minutes*60))
}

func parseCount(s string) (int, bool) {
	if v, ok := smallNumbers[strings.ToLower(s)]; ok {
		return v, true
	}
	v, err := strconv.Atoi(s)
	return v, err == nil && v > 0
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
