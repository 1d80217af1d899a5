package alarm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultName is shown when an alarm has no label.
const DefaultName = "Alarm"

// TimeOfDay is a wall-clock time without date or time zone.
type TimeOfDay struct {
	// Hour is the hour of the day, 0-23.
	Hour int
	// Minute is the minute of the hour, 0-59.
	Minute int
}

// Valid reports whether both fields are within their ranges.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// On returns the instant at this time of day on the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	year, month, date := day.Date()

	return time.Date(year, month, date, t.Hour, t.Minute, 0, 0, day.Location())
}

// TimeOfDayOf extracts the wall-clock hour and minute of the instant.
func TimeOfDayOf(instant time.Time) TimeOfDay {
	return TimeOfDay{
		Hour:   instant.Hour(),
		Minute: instant.Minute(),
	}
}

// Alarm is a user-defined recurring alarm. ID is its identity.
type Alarm struct {
	// ID is assigned at creation and never changes.
	ID string
	// Time is the time of day the alarm rings at.
	Time TimeOfDay
	// Days flags the weekdays the alarm recurs on, Monday first.
	Days Days
	// IsSet enables the alarm. Only set alarms are evaluated by the Matcher.
	IsSet bool
	// Color is the display color as packed ARGB.
	Color Color
	// Name is a free-form label, possibly empty.
	Name string
	// AudioPath is an optional local sound file, nil when not picked.
	AudioPath *string
	// AudioURL is an optional remote sound, empty when not set.
	AudioURL string
}

// Defaults holds the values a freshly created alarm starts with.
type Defaults struct {
	// Time overrides the initial time. The creation minute is used when nil.
	Time *TimeOfDay
	// Color overrides DefaultColor when non-zero.
	Color Color
	// Name is the initial label.
	Name string
	// Disabled creates the alarm with IsSet turned off.
	Disabled bool
}

// New creates an alarm with an ID derived from createdAt and no days selected.
func New(createdAt time.Time, defaults Defaults) (*Alarm, error) {
	id, err := NewID(createdAt)
	if err != nil {
		return nil, err
	}

	alarmTime := TimeOfDayOf(createdAt)
	if defaults.Time != nil {
		alarmTime = *defaults.Time
	}

	alarmColor := DefaultColor
	if defaults.Color != 0 {
		alarmColor = defaults.Color
	}

	return &Alarm{
		ID:    id,
		Time:  alarmTime,
		IsSet: !defaults.Disabled,
		Color: alarmColor,
		Name:  defaults.Name,
	}, nil
}

// NewID returns a time-ordered UUIDv7 whose timestamp field is createdAt.
func NewID(createdAt time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate alarm id: %w", err)
	}

	ms := uint64(createdAt.UnixMilli()) //nolint:gosec // Creation times are after 1970.
	for i := range 6 {
		id[i] = byte(ms >> (40 - 8*i))
	}

	return id.String(), nil
}

// CreatedAt recovers the creation timestamp encoded in an ID produced by NewID.
func CreatedAt(id string) (time.Time, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.Version() != 7 {
		return time.Time{}, false
	}

	var ms int64
	for i := range 6 {
		ms = ms<<8 | int64(parsed[i])
	}

	return time.UnixMilli(ms), true
}

// DisplayName returns the label, falling back to DefaultName.
func (a *Alarm) DisplayName() string {
	if a.Name == "" {
		return DefaultName
	}

	return a.Name
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a

	if a.AudioPath != nil {
		path := *a.AudioPath
		cloned.AudioPath = &path
	}

	return &cloned
}

// CloneAll deep-copies every alarm of the slice, preserving order.
func CloneAll(alarms []*Alarm) []*Alarm {
	result := make([]*Alarm, 0, len(alarms))
	for _, a := range alarms {
		result = append(result, a.Clone())
	}

	return result
}

// String renders the alarm in a compact single-line form for logs.
func (a *Alarm) String() string {
	status := "off"
	if a.IsSet {
		status = "on"
	}

	return fmt.Sprintf("%s %s [%s] %s", a.DisplayName(), a.Time, a.Days, status)
}
