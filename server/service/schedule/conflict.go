package schedule

// HasConflict reports whether proposed overlaps any busy period.
func HasConflict(proposed Interval, busy []BusyPeriod) bool {
	for _, b := range busy {
		if proposed.Overlaps(b.Interval) {
			return true
		}
	}
	return false
}

// FindConflicts returns the busy periods that overlap proposed, in input order.
func FindConflicts(proposed Interval, busy []BusyPeriod) []BusyPeriod {
	var conflicts []BusyPeriod
	for _, b := range busy {
		if proposed.Overlaps(b.Interval) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// ExcludeEvents drops busy periods that belong to any of the given event ids.
// Used when an event is moved so it cannot conflict with itself.
func ExcludeEvents(busy []BusyPeriod, eventIDs ...string) []BusyPeriod {
	if len(eventIDs) == 0 {
		return busy
	}
	skip := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		skip[id] = struct{}{}
	}
	out := make([]BusyPeriod, 0, len(busy))
	for _, b := range busy {
		if _, ok := skip[b.EventID]; ok && b.EventID != "" {
			continue
		}
		out = append(out, b)
	}
	return out
}
