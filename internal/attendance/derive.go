package attendance

import (
	"sort"
	"time"
)

// SortNewestFirst returns a copy of events ordered by CreatedAt descending.
// Ties keep their input order.
func SortNewestFirst(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// latest filters events by keep and returns the newest match. More than one
// match means an invariant was broken upstream; the newest still wins.
func latest(events []Event, keep func(Event) bool) *Event {
	var best *Event
	for i := range events {
		if !keep(events[i]) {
			continue
		}
		if best == nil || events[i].CreatedAt.After(best.CreatedAt) {
			e := events[i]
			best = &e
		}
	}
	return best
}

// CurrentSession returns the approved event without a clock-out, or nil.
func CurrentSession(events []Event) *Event {
	return latest(events, isCurrent)
}

// PendingSession returns the newest event awaiting approval, or nil.
func PendingSession(events []Event) *Event {
	return latest(events, isPending)
}

// PendingEvents returns every pending event, newest first.
func PendingEvents(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if isPending(e) {
			out = append(out, e)
		}
	}
	return SortNewestFirst(out)
}

// HasCompletedToday reports whether history holds an approved, closed cycle
// whose clock-in falls on the calendar day of now, in now's location.
func HasCompletedToday(history []Event, now time.Time) bool {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	for _, e := range history {
		if e.Status != StatusApproved || e.ClockOut == nil {
			continue
		}
		if !e.ClockIn.Before(start) && e.ClockIn.Before(end) {
			return true
		}
	}
	return false
}

func isCurrent(e Event) bool { return e.Status == StatusApproved && e.Open() }

func isPending(e Event) bool { return e.Status == StatusPending }
