// Package poller drives the minute matcher from a fixed-interval ticker.
//
// A Poller moves through three states: idle, running and stopped. Stopped is
// terminal, Stop is safe to call repeatedly and waits for the tick goroutine to
// exit. Ticks never overlap because they all run on that single goroutine.
package poller
