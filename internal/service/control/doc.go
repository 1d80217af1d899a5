// Package control implements the alarmctl commands: it edits and inspects
// the alarm set held by alarmd over gRPC and renders the results for a
// terminal.
package control
