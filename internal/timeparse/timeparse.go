// Package timeparse resolves the loose due-date phrasings the chat client
// lets through ("tomorrow at 5pm", "17:30", "in 2 days") into concrete
// times. Everything is regex-driven and resolved against a caller-supplied
// reference time so tests stay deterministic.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reTimeOfDay = regexp.MustCompile(`^(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	reRelative  = regexp.MustCompile(`^in\s+(\d+)\s+(minute|hour|day|week)s?$`)
	reDayAnchor = regexp.MustCompile(`^(today|tomorrow)(?:\s+at\s+(.+))?$`)
	reWeekday   = regexp.MustCompile(`^(?:next\s+|on\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?:\s+at\s+(.+))?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Resolve turns input into a concrete time relative to ref. The second
// return value reports whether the input was understood. Bare times of day
// resolve to their next occurrence, never to the past.
func Resolve(input string, ref time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, false
	}

	// Machine-formatted dates pass straight through. RFC3339 is matched
	// before lowercasing: Go's layout matching wants the T and Z literal.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			if layout == "2006-01-02" {
				// Bare dates mean "that day at 09:00", a default deadline.
				return time.Date(t.Year(), t.Month(), t.Day(), 9, 0, 0, 0, ref.Location()), true
			}
			return t, true
		}
	}

	input = strings.ToLower(trimmed)

	if m := reRelative.FindStringSubmatch(input); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "minute":
			return ref.Add(time.Duration(n) * time.Minute), true
		case "hour":
			return ref.Add(time.Duration(n) * time.Hour), true
		case "day":
			return ref.AddDate(0, 0, n), true
		case "week":
			return ref.AddDate(0, 0, 7*n), true
		}
	}

	if m := reDayAnchor.FindStringSubmatch(input); m != nil {
		day := ref
		if m[1] == "tomorrow" {
			day = ref.AddDate(0, 0, 1)
		}
		return atTimeOfDay(day, m[2], ref, m[1] == "today")
	}

	if m := reWeekday.FindStringSubmatch(input); m != nil {
		target := weekdays[m[1]]
		days := (int(target) - int(ref.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		day := ref.AddDate(0, 0, days)
		return atTimeOfDay(day, m[2], ref, false)
	}

	if hour, minute, ok := parseClock(input); ok {
		t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
		if !t.After(ref) {
			t = t.AddDate(0, 0, 1)
		}
		return t, true
	}

	return time.Time{}, false
}

// atTimeOfDay anchors clock onto day. An absent clock defaults to 09:00.
// futureOnly pushes a "today" result that already passed into tomorrow.
func atTimeOfDay(day time.Time, clock string, ref time.Time, futureOnly bool) (time.Time, bool) {
	hour, minute := 9, 0
	if strings.TrimSpace(clock) != "" {
		var ok bool
		hour, minute, ok = parseClock(clock)
		if !ok {
			return time.Time{}, false
		}
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, ref.Location())
	if futureOnly && !t.After(ref) {
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

func parseClock(input string) (hour, minute int, ok bool) {
	m := reTimeOfDay.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch m[3] {
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return 0, 0, false
		}
	}
	if minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
