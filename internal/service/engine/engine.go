package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/config"
	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/repository/alarms"
	"github.com/oshokin/alarm-clock/internal/service/poller"
)

var (
	// ErrNotFound is returned when no alarm has the requested ID.
	ErrNotFound = errors.New("alarm not found")
	// ErrInvalidAlarm is returned when a committed alarm cannot be stored.
	ErrInvalidAlarm = errors.New("invalid alarm")
	// errAlreadyInitialized is returned when Init is called twice.
	errAlreadyInitialized = errors.New("engine already initialized")
	// errNotInitialized is returned when Start is called before Init.
	errNotInitialized = errors.New("engine is not initialized")
	// errUnknownMode is returned for an unsupported detection mode.
	errUnknownMode = errors.New("unknown engine mode")
)

// Firing schedules and cancels alarm firings.
type Firing interface {
	ScheduleFiring(ctx context.Context, a *domain.Alarm) error
	ScheduleNext(ctx context.Context, a *domain.Alarm, after time.Time) (time.Time, error)
	Cancel(ctx context.Context, id string)
}

// CommitResult tells whether a commit added or replaced an alarm.
type CommitResult int

// Commit results.
const (
	Inserted CommitResult = iota + 1
	Replaced
)

// String returns the result name.
func (r CommitResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// DeleteResult tells whether a delete removed an alarm.
type DeleteResult int

// Delete results.
const (
	Removed DeleteResult = iota + 1
	NotFound
)

// String returns the result name.
func (r DeleteResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Status summarizes the engine session.
type Status struct {
	// Mode is poll or analytic.
	Mode string
	// State is the session lifecycle state.
	State poller.State
	// Alarms is the size of the alarm set.
	Alarms int
	// Skipped counts records dropped by the last load.
	Skipped int
	// Stale is true while the newest alarm set has not been persisted.
	Stale bool
	// Generation numbers the alarm set mutations.
	Generation uint64
}

// Engine is the alarm scheduling session.
type Engine struct {
	// repo persists the alarm set.
	repo alarms.Repository
	// firing turns due alarms into wake requests.
	firing Firing
	// mode selects poll or analytic detection.
	mode string
	// pollInterval is the poller tick period.
	pollInterval time.Duration
	// now returns the current time.
	now func() time.Time

	// alarms is the ordered alarm set.
	alarms []*domain.Alarm
	// generation is bumped by every mutation.
	generation uint64
	// savedGeneration is the newest generation written to the store.
	savedGeneration uint64
	// skipped counts records dropped by Init.
	skipped int
	// initialized is true after a successful Init.
	initialized bool
	// state is the session lifecycle state.
	state poller.State
	// poller drives detection in poll mode.
	poller *poller.Poller
	// mu protects every field in this group.
	mu sync.RWMutex

	// saveMu serializes writes to the store.
	saveMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode selects poll or analytic detection.
func WithMode(mode string) Option {
	return func(e *Engine) {
		if mode != "" {
			e.mode = mode
		}
	}
}

// WithPollInterval sets the poller tick period.
func WithPollInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.pollInterval = interval
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine. Call Init before using it.
func New(repo alarms.Repository, firing Firing, opts ...Option) (*Engine, error) {
	e := &Engine{
		repo:         repo,
		firing:       firing,
		mode:         config.ModeAnalytic,
		pollInterval: config.DefaultPollInterval,
		now:          time.Now,
		state:        poller.StateIdle,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.mode != config.ModePoll && e.mode != config.ModeAnalytic {
		return nil, fmt.Errorf("%w: %q", errUnknownMode, e.mode)
	}

	return e, nil
}

// Mode returns the detection mode.
func (e *Engine) Mode() string {
	return e.mode
}

// Init loads the persisted alarm set. Malformed records are skipped and counted.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return errAlreadyInitialized
	}

	// Read the stored set. Malformed records were already dropped by the store.
	result, err := e.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}

	e.alarms = result.Alarms
	e.skipped = result.Skipped
	e.initialized = true

	if result.Skipped > 0 {
		logger.WarnKV(ctx, "Some stored alarms could not be read", "skipped", result.Skipped)
	}

	logger.InfoKV(ctx, "Alarm set loaded", "count", len(e.alarms), "mode", e.mode)

	return nil
}

// Start arms detection: the clock poller in poll mode, or one wake request per
// set alarm in analytic mode.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()

	if !e.initialized {
		e.mu.Unlock()

		return errNotInitialized
	}

	switch e.state {
	case poller.StateRunning:
		e.mu.Unlock()

		return poller.ErrAlreadyRunning
	case poller.StateStopped:
		e.mu.Unlock()

		return poller.ErrStopped
	case poller.StateIdle:
	}

	e.state = poller.StateRunning

	// Poll mode: the poller checks the set on every tick.
	if e.mode == config.ModePoll {
		e.poller = poller.New(e, e.firing, poller.WithInterval(e.pollInterval), poller.WithClock(e.now))
		p := e.poller
		e.mu.Unlock()

		return p.Start(ctx)
	}

	// Analytic mode: one wake request per alarm, armed outside the lock.
	snapshot := domain.CloneAll(e.alarms)
	e.mu.Unlock()

	now := e.now()
	for _, a := range snapshot {
		e.arm(ctx, a, now)
	}

	logger.InfoKV(ctx, "Alarms armed", "count", len(snapshot))

	return nil
}

// Stop ends the session. Repeated calls are no-ops.
// Pending wake requests are left in place so they outlive the session.
func (e *Engine) Stop() {
	e.mu.Lock()
	p := e.poller
	e.state = poller.StateStopped
	e.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// Status summarizes the session.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Status{
		Mode:       e.mode,
		State:      e.state,
		Alarms:     len(e.alarms),
		Skipped:    e.skipped,
		Stale:      e.savedGeneration < e.generation,
		Generation: e.generation,
	}
}

// Stale reports whether the newest alarm set failed to persist.
func (e *Engine) Stale() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.savedGeneration < e.generation
}

// Snapshot returns a deep copy of the alarm set in order.
func (e *Engine) Snapshot() []*domain.Alarm {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return domain.CloneAll(e.alarms)
}

// Load returns a copy of the live alarm set. Firings resolved through it see
// the newest committed alarms even while the store is stale.
func (e *Engine) Load(context.Context) (*alarms.LoadResult, error) {
	return &alarms.LoadResult{Alarms: e.Snapshot()}, nil
}

// Get returns a copy of the alarm with the given ID.
func (e *Engine) Get(id string) (*domain.Alarm, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	i := e.indexOf(id)
	if i < 0 {
		return nil, false
	}

	return e.alarms[i].Clone(), true
}

// Create returns a fresh alarm that is not part of the set until committed.
func (e *Engine) Create(defaults domain.Defaults) (*domain.Alarm, error) {
	return domain.New(e.now(), defaults)
}

// Commit inserts the alarm, or replaces the alarm with the same ID, and
// persists the set. On a persistence failure the change stays in memory,
// the engine reports Stale and the error is returned with the result.
func (e *Engine) Commit(ctx context.Context, a *domain.Alarm) (CommitResult, error) {
	if a == nil || a.ID == "" {
		return 0, fmt.Errorf("%w: id is required", ErrInvalidAlarm)
	}

	stored := a.Clone()

	// Apply the change and take the snapshot to persist under one lock.
	e.mu.Lock()

	result := Inserted
	if i := e.indexOf(stored.ID); i >= 0 {
		e.alarms[i] = stored
		result = Replaced
	} else {
		e.alarms = append(e.alarms, stored)
	}

	generation, snapshot := e.bump()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm committed", "alarm_id", stored.ID, "result", result.String(), "alarm", stored.String())

	// A failed save keeps the change in memory, so the firing still follows it.
	err := e.persist(ctx, generation, snapshot)

	e.rearm(ctx, stored)

	return result, err
}

// Delete removes the alarm with the given ID and persists the set.
// A missing ID is a no-op that returns NotFound without saving.
func (e *Engine) Delete(ctx context.Context, id string) (DeleteResult, error) {
	e.mu.Lock()

	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()

		return NotFound, nil
	}

	e.alarms = slices.Delete(e.alarms, i, i+1)
	generation, snapshot := e.bump()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm deleted", "alarm_id", id)

	err := e.persist(ctx, generation, snapshot)

	// Withdraw the removed alarm's wake request.
	if e.analyticRunning() {
		e.firing.Cancel(ctx, id)
	}

	return Removed, err
}

// ToggleIsSet flips the alarm's IsSet flag, persists the set and returns the
// updated alarm.
func (e *Engine) ToggleIsSet(ctx context.Context, id string) (*domain.Alarm, error) {
	e.mu.Lock()

	i := e.indexOf(id)
	if i < 0 {
		e.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.alarms[i].IsSet = !e.alarms[i].IsSet
	updated := e.alarms[i].Clone()
	generation, snapshot := e.bump()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm toggled", "alarm_id", id, "is_set", updated.IsSet)

	err := e.persist(ctx, generation, snapshot)

	e.rearm(ctx, updated)

	return updated, err
}

// indexOf returns the position of the alarm with the given ID or -1.
// Callers hold mu.
func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.alarms, func(a *domain.Alarm) bool {
		return a.ID == id
	})
}

// bump starts a new generation and returns it with a snapshot to persist.
// Callers hold mu for writing.
func (e *Engine) bump() (uint64, []*domain.Alarm) {
	e.generation++

	return e.generation, domain.CloneAll(e.alarms)
}

// persist writes the snapshot unless a newer generation is already stored.
func (e *Engine) persist(ctx context.Context, generation uint64, snapshot []*domain.Alarm) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	// A later mutation already wrote a newer set.
	e.mu.RLock()
	superseded := generation <= e.savedGeneration
	e.mu.RUnlock()

	if superseded {
		logger.DebugKV(ctx, "Skipping superseded save", "generation", generation)

		return nil
	}

	if err := e.repo.Save(ctx, snapshot); err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarms, in-memory set is stale", "generation", generation, "error", err)

		return fmt.Errorf("persist alarms: %w", err)
	}

	// Saves run one at a time in saveMu, so the stored generation only grows.
	e.mu.Lock()
	e.savedGeneration = generation
	e.mu.Unlock()

	return nil
}

// analyticRunning reports whether mutations must update wake requests.
func (e *Engine) analyticRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.mode == config.ModeAnalytic && e.state == poller.StateRunning
}

// rearm reschedules a changed alarm in analytic mode.
func (e *Engine) rearm(ctx context.Context, a *domain.Alarm) {
	if !e.analyticRunning() {
		return
	}

	e.arm(ctx, a, e.now())
}

// arm schedules the next occurrence of the alarm, or cancels it when it cannot fire.
func (e *Engine) arm(ctx context.Context, a *domain.Alarm, now time.Time) {
	at, err := e.firing.ScheduleNext(ctx, a, now)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to arm alarm", "alarm_id", a.ID, "error", err)

		return
	}

	if !at.IsZero() {
		logger.DebugKV(ctx, "Alarm armed", "alarm_id", a.ID, "next", at)
	}
}
