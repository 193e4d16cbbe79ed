package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ComputeLate reports whether an arrival at now ("HH:MM") is after the
// scheduled time-in. An empty or unparsable schedule is never late.
//
// Both values are compared on the same 24h clock; schedules that cross
// midnight are not supported.
func ComputeLate(now, scheduled string) bool {
	n, s, ok := minutesPair(now, scheduled)
	return ok && n > s
}

// ComputeEarly reports whether a departure at now ("HH:MM") is before the
// scheduled time-out. Same limitations as ComputeLate.
func ComputeEarly(now, scheduled string) bool {
	n, s, ok := minutesPair(now, scheduled)
	return ok && n < s
}

// ClockString formats t as "HH:MM" in its own location.
func ClockString(t time.Time) string {
	return t.Format("15:04")
}

func minutesPair(now, scheduled string) (int, int, bool) {
	if strings.TrimSpace(scheduled) == "" {
		return 0, 0, false
	}
	s, err := minutesOfDay(scheduled)
	if err != nil {
		return 0, 0, false
	}
	n, err := minutesOfDay(now)
	if err != nil {
		return 0, 0, false
	}
	return n, s, true
}

// minutesOfDay parses "HH:MM" into minutes since midnight.
func minutesOfDay(clock string) (int, error) {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q: want HH:MM", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: bad hour", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", clock)
	}
	return h*60 + m, nil
}
