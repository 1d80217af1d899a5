// Package wake provides the deferred-execution service alarms are fired through.
//
// A single goroutine owns a min-heap of one-shot requests ordered by instant
// and sleeps until the earliest one is due, never longer than a minute at a
// time so that clock steps and system sleep are noticed. Requests are keyed
// by a numeric identifier; scheduling an identifier again replaces its
// pending request.
package wake
