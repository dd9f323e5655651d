package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hrygo/slotsense/ai/conversation"
	"github.com/hrygo/slotsense/ai/internal/strutil"
	"github.com/hrygo/slotsense/server/service/schedule"
)

const (
	dayLayout   = "Mon Jan 2"
	timeLayout  = "Mon Jan 2 15:04"
	clockLayout = "15:04"
	// maxTitleInMessage caps titles quoted back to the user.
	maxTitleInMessage = 60
)

var (
	ordinalNumberRe = regexp.MustCompile(`^\s*(?:#|no\.?\s*|number\s+|option\s+)?(\d{1,2})(?:st|nd|rd|th)?\s*[.!)]?\s*$`)
	ordinalWordRe   = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|last)\b`)
	idTokenRe       = regexp.MustCompile(`[0-9A-Za-z-]{4,}`)

	ordinalWords = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5}
)

// parseOrdinal reads "2", "#2", "option 2" or "the second one" as a
// 1-based index into n choices.
func parseOrdinal(reply string, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}
	if m := ordinalNumberRe.FindStringSubmatch(reply); m != nil {
		i, err := strconv.Atoi(m[1])
		if err != nil || i < 1 || i > n {
			return 0, false
		}
		return i - 1, true
	}
	if m := ordinalWordRe.FindStringSubmatch(reply); m != nil {
		word := strings.ToLower(m[1])
		if word == "last" {
			return n - 1, true
		}
		if i := ordinalWords[word]; i <= n {
			return i - 1, true
		}
	}
	return 0, false
}

func pickAlternative(reply string, alternatives []conversation.Slot) (conversation.Slot, bool) {
	i, ok := parseOrdinal(reply, len(alternatives))
	if !ok {
		return conversation.Slot{}, false
	}
	return alternatives[i], true
}

// pickCandidate selects a candidate by ordinal, short id or exact title.
func pickCandidate(reply string, candidates []conversation.Candidate) (conversation.Candidate, bool) {
	if i, ok := parseOrdinal(reply, len(candidates)); ok {
		return candidates[i], true
	}
	for _, token := range idTokenRe.FindAllString(reply, -1) {
		var found []conversation.Candidate
		for _, c := range candidates {
			if strutil.MatchesShortID(c.EventID, token) {
				found = append(found, c)
			}
		}
		if len(found) == 1 {
			return found[0], true
		}
	}
	reply = strings.TrimSpace(strings.Trim(reply, "\"'.!?"))
	var found []conversation.Candidate
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Title), reply) {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return conversation.Candidate{}, false
}

func quote(title string) string {
	return strconv.Quote(strutil.Truncate(title, maxTitleInMessage))
}

func formatRange(iv schedule.Interval, loc *time.Location) string {
	start, end := iv.Start.In(loc), iv.End.In(loc)
	if sameDay(start, end) {
		return start.Format(timeLayout) + "-" + end.Format(clockLayout)
	}
	return start.Format(timeLayout) + " - " + end.Format(timeLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func formatSlots(slots []schedule.Slot, loc *time.Location) string {
	var b strings.Builder
	for i, slot := range slots {
		fmt.Fprintf(&b, "\n%d) %s (%s)", i+1, formatRange(slot.Interval, loc), slot.Rationale)
	}
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func createdMessage(draft *schedule.EventDraft, committed bool, loc *time.Location) string {
	verb := "Scheduled"
	if !committed {
		verb = "Ready to schedule"
	}
	return fmt.Sprintf("%s %s on %s.", verb, quote(draft.Title), formatRange(draft.Interval(), loc))
}

func conflictMessage(c *Conflict, loc *time.Location) string {
	titles := make([]string, 0, len(c.Conflicts))
	for _, b := range c.Conflicts {
		title := b.Title
		if title == "" {
			title = "busy"
		}
		titles = append(titles, fmt.Sprintf("%s (%s)", quote(title), formatRange(b.Interval, loc)))
	}
	msg := fmt.Sprintf("%s overlaps %s.", formatRange(c.Proposed, loc), strings.Join(titles, ", "))
	if len(c.Alternatives) == 0 {
		return msg + fmt.Sprintf(" No free alternatives found in the next %d days. Reply with a different time.", widenDays)
	}
	return msg + " Free alternatives:" + formatSlots(c.Alternatives, loc) + "\nReply with a number or a different time."
}

func ambiguousMessage(a *Ambiguous, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d events match %s:", len(a.Candidates), quote(a.Reference))
	for i, c := range a.Candidates {
		fmt.Fprintf(&b, "\n%d) %s, %s [%s]", i+1, quote(c.Title), formatRange(schedule.Interval{Start: c.Start, End: c.End}, loc), c.ShortID)
	}
	b.WriteString("\nReply with a number, the id, or the exact title.")
	return b.String()
}

func notFoundMessage(nf *NotFound) string {
	msg := fmt.Sprintf("I couldn't find an event called %s.", quote(nf.Reference))
	if len(nf.NearbyTitles) > 0 {
		quoted := make([]string, 0, len(nf.NearbyTitles))
		for _, title := range nf.NearbyTitles {
			quoted = append(quoted, quote(title))
		}
		msg += " Did you mean one of: " + strings.Join(quoted, ", ") + "?"
	}
	return msg + " Reply with the event's title."
}

func eventsMessage(ev *Events, loc *time.Location) string {
	day := ev.Window.Start.In(loc).Format(dayLayout)
	if len(ev.Events) == 0 {
		return fmt.Sprintf("Nothing scheduled on %s.", day)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %s on %s:", plural(len(ev.Events), "event"), day)
	for _, e := range ev.Events {
		fmt.Fprintf(&b, "\n- %s %s", formatRange(e.Interval(), loc), e.Title)
	}
	return b.String()
}

func availabilityMessage(a *Availability, loc *time.Location) string {
	window := formatRange(a.Window, loc)
	if a.Free {
		return fmt.Sprintf("You're free %s.", window)
	}
	msg := fmt.Sprintf("You're busy during %s with %s.", window, plural(len(a.Busy), "event"))
	if len(a.Slots) > 0 {
		msg += " Open slots:" + formatSlots(a.Slots, loc)
	}
	return msg
}

func emailsMessage(em *Emails) string {
	if len(em.Messages) == 0 {
		return "No matching emails."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %s:", plural(len(em.Messages), "email"))
	for _, m := range em.Messages {
		marker := ""
		if m.Unread {
			marker = " (unread)"
		}
		fmt.Fprintf(&b, "\n- %s from %s%s", quote(m.Subject), m.From, marker)
	}
	return b.String()
}
