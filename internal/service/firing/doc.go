// Package firing turns due alarms into one-shot wake requests and posts the
// notification when a request fires.
//
// A request is keyed by a stable identifier derived from the alarm ID, so
// scheduling the same alarm again replaces the pending request. The fire
// callback may run long after scheduling, possibly in a fresh process, and
// therefore reloads the alarm set from the store instead of trusting memory.
package firing
