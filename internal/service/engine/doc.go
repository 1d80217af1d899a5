// Package engine owns the in-memory alarm set and the scheduling session.
//
// An Engine is constructed once per process and passed to its collaborators.
// It loads the set on Init, arms detection on Start and tears the session down
// on Stop. Every mutation re-persists the whole set; the newest generation
// always wins when saves overlap.
//
// Two detection modes exist. In poll mode a clock poller matches the set
// against the current minute on every tick. In analytic mode every set alarm
// has its next occurrence scheduled with the wake service up front and is
// re-armed after it fires.
package engine
