// Package alarm contains the core domain types of the alarm clock.
//
// It defines the Alarm record (time of day, active weekdays, presentation
// metadata), the day and color helpers used to render it, the field-tagged
// record codec used for persistence and transport, and the Matcher that
// decides which alarms are due at a given minute.
package alarm
