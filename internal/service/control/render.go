package control

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
)

const (
	// swatchWidth is the padded width of the name cell.
	swatchWidth = 16
	// followingCount is how many later ring times next shows for one alarm.
	followingCount = 3
	// occurrenceLayout formats ring times.
	occurrenceLayout = "Mon 02 Jan 15:04"
)

// occurrence is an alarm paired with its next ring time.
type occurrence struct {
	alarm *domain.Alarm
	at    time.Time
}

// formatAlarm renders one alarm as two lines: a summary with the name drawn
// on the alarm's color, and its recurrence details.
func formatAlarm(a *domain.Alarm, now time.Time) string {
	state := color.New(color.FgGreen).Sprint("on ")
	if !a.IsSet {
		state = color.New(color.FgHiBlack).Sprint("off")
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s [%s] %s  %-20s %s", swatch(a), state, a.Time, a.Days, a.ID)

	next := "never"
	if at, ok := a.NextOccurrence(now); ok {
		next = at.Format(occurrenceLayout)
	}

	fmt.Fprintf(&b, "\n    next: %s", next)

	if rule := a.RRule(); rule != "" {
		fmt.Fprintf(&b, "  rule: %s", rule)
	}

	if a.AudioPath != nil {
		fmt.Fprintf(&b, "\n    sound: %s", *a.AudioPath)
	}

	if a.AudioURL != "" {
		fmt.Fprintf(&b, "\n    url: %s", a.AudioURL)
	}

	// Only IDs minted by alarmd carry their creation time.
	if created, ok := domain.CreatedAt(a.ID); ok {
		fmt.Fprintf(&b, "\n    created: %s", created.In(now.Location()).Format("02 Jan 2006 15:04"))
	}

	return b.String()
}

// swatch draws the display name on the alarm's color in its contrast text color.
func swatch(a *domain.Alarm) string {
	name := a.DisplayName()
	if runes := []rune(name); len(runes) > swatchWidth-2 {
		name = string(runes[:swatchWidth-3]) + "…"
	}

	text := a.Color.ContrastText()
	c := color.BgRGB(int(a.Color.Red()), int(a.Color.Green()), int(a.Color.Blue())).
		AddRGB(int(text.Red()), int(text.Green()), int(text.Blue()))

	return c.Sprintf(" %-*s ", swatchWidth-2, name)
}

// warning highlights a message.
func warning(msg string) string {
	return color.New(color.FgYellow, color.Bold).Sprint(msg)
}

// upcomingOccurrences returns the next ring time of each alarm, soonest first.
// Disabled alarms are included only when includeDisabled is set.
func upcomingOccurrences(list []*domain.Alarm, now time.Time, includeDisabled bool) []occurrence {
	result := make([]occurrence, 0, len(list))

	for _, a := range list {
		if !a.IsSet && !includeDisabled {
			continue
		}

		at, ok := a.NextOccurrence(now)
		if !ok {
			continue
		}

		result = append(result, occurrence{alarm: a, at: at})
	}

	slices.SortStableFunc(result, func(x, y occurrence) int {
		return x.at.Compare(y.at)
	})

	return result
}

// followingOccurrences returns up to n ring times of the alarm's weekly rule
// after first, which must itself be an occurrence.
func followingOccurrences(a *domain.Alarm, first time.Time, n int) []time.Time {
	rule, err := a.Recurrence(first)
	if err != nil {
		return nil
	}

	result := make([]time.Time, 0, n)

	for after := first; len(result) < n; {
		next := rule.After(after, false)
		if next.IsZero() {
			break
		}

		result = append(result, next)
		after = next
	}

	return result
}

// formatDuration renders d rounded to minutes, as 2d3h, 5h07m or 12m.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
