package alarm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DaysInWeek is the length of the Days array.
const DaysInWeek = 7

// Days flags the weekdays an alarm recurs on. Index 0 is Monday, 6 is Sunday.
type Days [DaysInWeek]bool

var (
	// dayNames are the full English weekday names, Monday first.
	//nolint:gochecknoglobals // Read-only lookup table.
	dayNames = [DaysInWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

	// errInvalidTime is returned when a time of day cannot be parsed.
	errInvalidTime = errors.New("invalid time of day")
	// errInvalidDays is returned when a day list cannot be parsed.
	errInvalidDays = errors.New("invalid days")
)

// WeekdayIndex maps a time.Weekday to its Days index (ISO weekday minus one).
func WeekdayIndex(day time.Weekday) int {
	return (int(day) + DaysInWeek - 1) % DaysInWeek
}

// DayName returns the full name of the day at index i, or "" when out of range.
func DayName(i int) string {
	if i < 0 || i >= DaysInWeek {
		return ""
	}

	return dayNames[i]
}

// ShortDayName returns the three-letter name of the day at index i.
func ShortDayName(i int) string {
	name := DayName(i)
	if name == "" {
		return ""
	}

	return name[:3]
}

// Count returns how many days are selected.
func (d Days) Count() int {
	var n int

	for _, on := range d {
		if on {
			n++
		}
	}

	return n
}

// Any reports whether at least one day is selected.
func (d Days) Any() bool {
	return d.Count() > 0
}

// On reports whether the alarm recurs on the given weekday.
func (d Days) On(day time.Weekday) bool {
	return d[WeekdayIndex(day)]
}

// Weekdays returns the selected days as time.Weekday values, Monday first.
func (d Days) Weekdays() []time.Weekday {
	result := make([]time.Weekday, 0, d.Count())

	for i, on := range d {
		if on {
			result = append(result, time.Weekday((i+1)%DaysInWeek))
		}
	}

	return result
}

// String summarizes the selection: "Every day", "Weekdays", "Weekends",
// "Never" or a comma-separated list of short names.
func (d Days) String() string {
	switch d {
	case Days{true, true, true, true, true, true, true}:
		return "Every day"
	case Days{true, true, true, true, true, false, false}:
		return "Weekdays"
	case Days{false, false, false, false, false, true, true}:
		return "Weekends"
	case Days{}:
		return "Never"
	}

	names := make([]string, 0, d.Count())

	for i, on := range d {
		if on {
			names = append(names, ShortDayName(i))
		}
	}

	return strings.Join(names, ", ")
}

// ParseDays parses a comma-separated list of day names (full or three-letter,
// case-insensitive) or one of the keywords daily, weekdays, weekends, none.
func ParseDays(s string) (Days, error) {
	var days Days

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "never":
		return days, nil
	case "daily", "everyday", "every day", "all":
		return Days{true, true, true, true, true, true, true}, nil
	case "weekdays":
		return Days{true, true, true, true, true, false, false}, nil
	case "weekends":
		return Days{false, false, false, false, false, true, true}, nil
	}

	for _, part := range strings.Split(s, ",") {
		i, ok := lookupDay(part)
		if !ok {
			return Days{}, fmt.Errorf("%w: unknown day %q", errInvalidDays, strings.TrimSpace(part))
		}

		days[i] = true
	}

	return days, nil
}

// lookupDay resolves a full or short day name to its index.
func lookupDay(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}

	for i, full := range dayNames {
		full = strings.ToLower(full)
		if name == full || name == full[:3] {
			return i, true
		}
	}

	return 0, false
}

// String renders the time as zero-padded HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "H:MM" or "HH:MM" in 24-hour notation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hourPart, minutePart, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return TimeOfDay{}, fmt.Errorf("%w: %q", errInvalidTime, s)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: hour %q", errInvalidTime, hourPart)
	}

	minute, err := strconv.Atoi(minutePart)
	if err != nil || len(minutePart) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: minute %q", errInvalidTime, minutePart)
	}

	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q out of range", errInvalidTime, s)
	}

	return t, nil
}
