package alarm

import "time"

// DueAt reports whether the alarm should fire during the minute containing now.
// Seconds are ignored and the comparison is exact to the minute.
func (a *Alarm) DueAt(now time.Time) bool {
	if a == nil || !a.IsSet || !a.Days.On(now.Weekday()) {
		return false
	}

	return a.Time.Hour == now.Hour() && a.Time.Minute == now.Minute()
}

// DueAlarms returns the alarms due at now, in input order.
// It never mutates its input, so callers pass a snapshot of the alarm set.
func DueAlarms(now time.Time, alarms []*Alarm) []*Alarm {
	var due []*Alarm

	for _, a := range alarms {
		if a.DueAt(now) {
			due = append(due, a)
		}
	}

	return due
}
