package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCronExpr verifies the cron rendering and the never-recurring case.
func TestCronExpr(t *testing.T) {
	t.Parallel()

	a := &Alarm{Time: TimeOfDay{Hour: 7, Minute: 30}, Days: Days{true, false, true, false, false, false, true}}
	require.Equal(t, "30 7 * * 1,3,0", a.CronExpr())

	require.Empty(t, (&Alarm{Time: TimeOfDay{Hour: 7}}).CronExpr())
	require.Empty(t, (&Alarm{Time: TimeOfDay{Hour: 25}, Days: Days{true}}).CronExpr())
}

// TestNextOccurrence covers same-day, same-minute and wrap-around cases.
func TestNextOccurrence(t *testing.T) {
	t.Parallel()

	// Monday and Wednesday at 07:30.
	a := &Alarm{Time: TimeOfDay{Hour: 7, Minute: 30}, Days: Days{true, false, true}}

	wednesdayEarly := time.Date(2026, time.October, 14, 7, 29, 30, 0, time.UTC)
	next, ok := a.NextOccurrence(wednesdayEarly)
	require.True(t, ok)
	require.True(t, next.Equal(time.Date(2026, time.October, 14, 7, 30, 0, 0, time.UTC)), next)

	// Strictly after: the occurrence itself moves on to Monday.
	next, ok = a.NextOccurrence(time.Date(2026, time.October, 14, 7, 30, 0, 0, time.UTC))
	require.True(t, ok)
	require.True(t, next.Equal(time.Date(2026, time.October, 19, 7, 30, 0, 0, time.UTC)), next)

	// Friday wraps to next Monday.
	next, ok = a.NextOccurrence(time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, time.Monday, next.Weekday())

	_, ok = (&Alarm{Time: TimeOfDay{Hour: 7}}).NextOccurrence(wednesdayEarly)
	require.False(t, ok)
}

// TestRRule verifies the RFC 5545 rendering and that the rule agrees with NextOccurrence.
func TestRRule(t *testing.T) {
	t.Parallel()

	a := &Alarm{Time: TimeOfDay{Hour: 7, Minute: 30}, Days: Days{true, false, true}}

	rule := a.RRule()
	require.Contains(t, rule, "FREQ=WEEKLY")
	require.Contains(t, rule, "BYDAY=MO,WE")
	require.Contains(t, rule, "BYHOUR=7")
	require.Contains(t, rule, "BYMINUTE=30")
	require.Empty(t, (&Alarm{}).RRule())

	dtstart := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	recurrence, err := a.Recurrence(dtstart)
	require.NoError(t, err)

	from := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	want, ok := a.NextOccurrence(from)
	require.True(t, ok)
	require.True(t, want.Equal(recurrence.After(from, false)))
}
