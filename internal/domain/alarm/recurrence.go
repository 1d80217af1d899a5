package alarm

import (
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/teambition/rrule-go"
)

// CronExpr returns a five-field cron expression equivalent to the alarm's
// schedule, or "" when no day is selected or the time is out of range.
func (a *Alarm) CronExpr() string {
	if !a.Days.Any() || !a.Time.Valid() {
		return ""
	}

	weekdays := a.Days.Weekdays()
	fields := make([]string, 0, len(weekdays))

	for _, day := range weekdays {
		fields = append(fields, strconv.Itoa(int(day)))
	}

	return strconv.Itoa(a.Time.Minute) + " " + strconv.Itoa(a.Time.Hour) + " * * " + strings.Join(fields, ",")
}

// NextOccurrence returns the first instant strictly after the given time at
// which the alarm's schedule matches, in after's location. IsSet is ignored.
func (a *Alarm) NextOccurrence(after time.Time) (time.Time, bool) {
	expr := a.CronExpr()
	if expr == "" {
		return time.Time{}, false
	}

	next, err := gronx.NextTickAfter(expr, after, false)
	if err != nil {
		return time.Time{}, false
	}

	return next, true
}

// rruleWeekdays maps Days indexes to rrule weekdays.
//
//nolint:gochecknoglobals // Read-only lookup table.
var rruleWeekdays = [DaysInWeek]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// Recurrence builds the weekly RFC 5545 rule for the alarm starting at dtstart.
func (a *Alarm) Recurrence(dtstart time.Time) (*rrule.RRule, error) {
	return rrule.NewRRule(a.recurrenceOptions(dtstart))
}

// RRule renders the alarm's schedule as an RRULE value, or "" when it never recurs.
func (a *Alarm) RRule() string {
	if !a.Days.Any() || !a.Time.Valid() {
		return ""
	}

	options := a.recurrenceOptions(time.Time{})
	if _, err := rrule.NewRRule(options); err != nil {
		return ""
	}

	return options.RRuleString()
}

// recurrenceOptions describes the alarm as a weekly rule.
func (a *Alarm) recurrenceOptions(dtstart time.Time) rrule.ROption {
	byweekday := make([]rrule.Weekday, 0, a.Days.Count())

	for i, on := range a.Days {
		if on {
			byweekday = append(byweekday, rruleWeekdays[i])
		}
	}

	return rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   dtstart,
		Byweekday: byweekday,
		Byhour:    []int{a.Time.Hour},
		Byminute:  []int{a.Time.Minute},
		Bysecond:  []int{0},
	}
}
