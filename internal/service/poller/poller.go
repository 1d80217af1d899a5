package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 10 * time.Second

var (
	// ErrStopped is returned by Start after the poller was stopped.
	ErrStopped = errors.New("poller is stopped")
	// ErrAlreadyRunning is returned by Start on a running poller.
	ErrAlreadyRunning = errors.New("poller is already running")
)

// State is the lifecycle state of a Poller.
type State int

// Poller states.
const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source provides a snapshot of the alarm set.
type Source interface {
	Snapshot() []*domain.Alarm
}

// Firer schedules the firing of a due alarm.
type Firer interface {
	ScheduleFiring(ctx context.Context, a *domain.Alarm) error
}

// Poller evaluates the alarm set on every tick and fires the due alarms.
type Poller struct {
	// source yields the alarm set snapshot.
	source Source
	// firer receives every due alarm.
	firer Firer
	// interval is the tick period.
	interval time.Duration
	// now returns the current time.
	now func() time.Time
	// state is the lifecycle state.
	state State
	// cancel stops the tick goroutine.
	cancel context.CancelFunc
	// done is closed when the tick goroutine exits.
	done chan struct{}
	// mu protects state, cancel and done.
	mu sync.Mutex
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithClock replaces the time source used for matching.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates an idle Poller.
func New(source Source, firer Firer, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		firer:    firer,
		interval: DefaultInterval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Start begins ticking. The loop ends on Stop or when ctx is canceled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateStopped:
		return ErrStopped
	case StateIdle:
	}

	ctx, p.cancel = context.WithCancel(logger.WithName(ctx, "poller"))
	p.done = make(chan struct{})
	p.state = StateRunning

	go p.run(ctx, p.done)

	logger.InfoKV(ctx, "Clock poller started", "interval", p.interval.String())

	return nil
}

// Stop ends the session and waits for the tick goroutine to exit.
// Repeated calls are no-ops.
func (p *Poller) Stop() {
	p.mu.Lock()

	if p.state == StateStopped {
		p.mu.Unlock()

		return
	}

	wasRunning := p.state == StateRunning
	p.state = StateStopped
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if !wasRunning {
		return
	}

	cancel()
	<-done
}

// run ticks until ctx is canceled.
func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.state = StateStopped
			p.mu.Unlock()

			logger.Info(ctx, "Clock poller stopped")

			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick evaluates the alarm set once and schedules every due alarm.
// Scheduling failures are logged and do not affect the other alarms.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now()
	due := domain.DueAlarms(now, p.source.Snapshot())

	for _, a := range due {
		logger.InfoKV(ctx, "Alarm due", "alarm_id", a.ID, "name", a.DisplayName(), "time", a.Time.String())

		if err := p.firer.ScheduleFiring(ctx, a); err != nil {
			logger.ErrorKV(ctx, "Failed to schedule firing", "alarm_id", a.ID, "error", err)
		}
	}
}
