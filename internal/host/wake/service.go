package wake

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/alarm-clock/internal/logger"
)

const (
	// maxSleepCap bounds a single sleep so wall-clock jumps are picked up.
	maxSleepCap = 60 * time.Second

	// DefaultLateGrace is how far in the past a request may be and still fire.
	DefaultLateGrace = time.Minute
)

var (
	// ErrRejected is returned when a request cannot be scheduled.
	ErrRejected = errors.New("wake request rejected")
	// errAlreadyInitialized is returned when Initialize is called twice.
	errAlreadyInitialized = errors.New("wake service already initialized")
)

// Options are the delivery flags of a request.
type Options struct {
	// Exact asks for delivery at the instant rather than in a batching window.
	Exact bool
	// Wake asks for delivery even when the host is asleep.
	Wake bool
}

// Callback is invoked once when a request fires.
type Callback func(ctx context.Context, id int)

// Request is a pending one-shot wake request.
type Request struct {
	// ID is the caller-chosen identifier.
	ID int
	// At is the instant the request fires at.
	At time.Time
	// Options are the delivery flags the request was made with.
	Options Options

	// callback is invoked when the request fires.
	callback Callback
	// seq orders requests with equal instants by arrival.
	seq uint64
}

// Service is an in-process deferred-execution service.
type Service struct {
	// pending holds the requests waiting to fire.
	pending requestHeap
	// seq numbers requests in arrival order.
	seq uint64
	// lateGrace is the accepted lateness of a request.
	lateGrace time.Duration
	// now returns the current time.
	now func() time.Time
	// kick wakes the loop after pending changed.
	kick chan struct{}
	// done is closed when the loop exits.
	done chan struct{}
	// running is true between Initialize and loop exit.
	running bool
	// initialized is true once Initialize was called.
	initialized bool
	// mu protects every field above except the channels.
	mu sync.Mutex
}

// Option configures the service.
type Option func(*Service)

// WithLateGrace sets how far in the past a request may be and still fire.
func WithLateGrace(grace time.Duration) Option {
	return func(s *Service) {
		if grace >= 0 {
			s.lateGrace = grace
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a service. Call Initialize before scheduling.
func New(opts ...Option) *Service {
	s := &Service{
		lateGrace: DefaultLateGrace,
		now:       time.Now,
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initialize starts the service goroutine. It runs until ctx is canceled.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return errAlreadyInitialized
	}

	s.initialized = true
	s.running = true

	go s.run(logger.WithName(ctx, "wake"))

	return nil
}

// Done is closed once the service goroutine has exited.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// ScheduleOneShotAt requests cb be called with id at the given instant.
// A pending request with the same id is replaced.
func (s *Service) ScheduleOneShotAt(ctx context.Context, at time.Time, id int, cb Callback, opts Options) error {
	if cb == nil {
		return fmt.Errorf("%w: callback is required", ErrRejected)
	}

	if at.IsZero() {
		return fmt.Errorf("%w: instant is required", ErrRejected)
	}

	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()

		return fmt.Errorf("%w: service is not running", ErrRejected)
	}

	// Requests within the late grace still fire on the next loop pass.
	now := s.now()
	if at.Before(now.Add(-s.lateGrace)) {
		s.mu.Unlock()

		return fmt.Errorf("%w: instant %s has already elapsed", ErrRejected, at.Format(time.RFC3339))
	}

	// One pending request per id: the new one replaces the old.
	replaced := s.pending.removeByID(id)
	s.seq++
	s.pending.push(Request{
		ID:       id,
		At:       at,
		Options:  opts,
		callback: cb,
		seq:      s.seq,
	})
	s.mu.Unlock()

	// The new request may be earlier than the one the loop sleeps on.
	s.notify()

	logger.DebugKV(ctx, "Wake request scheduled", "id", id, "at", at, "replaced", replaced, "exact", opts.Exact, "wake", opts.Wake)

	return nil
}

// Cancel drops the pending request with the given id. Returns false if there was none.
func (s *Service) Cancel(id int) bool {
	s.mu.Lock()
	removed := s.pending.removeByID(id)
	s.mu.Unlock()

	if removed {
		s.notify()
	}

	return removed
}

// Pending returns a copy of the pending requests, earliest first.
func (s *Service) Pending() []Request {
	s.mu.Lock()
	result := slices.Clone(s.pending)
	s.mu.Unlock()

	slices.SortFunc(result, func(a, b Request) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}

		return int(a.seq) - int(b.seq) //nolint:gosec // Sequence numbers stay small.
	})

	return result
}

// notify wakes the loop without blocking.
func (s *Service) notify() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// run is the service goroutine. It sleeps until the earliest request is due
// (capped at maxSleepCap), fires everything due and repeats.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.pending.Len() == 0 {
			// Nothing pending: block on the channels.
			return nil
		}

		dur := s.pending[0].At.Sub(s.now())
		dur = min(max(dur, 0), maxSleepCap)
		timer = time.NewTimer(dur)

		return timer.C
	}

	timerCh := resetTimer()

	// Re-arm the timer after every wake-up, whatever its cause.
	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "Wake service stopped")

			return
		case <-s.kick:
		case <-timerCh:
			s.fireDue(ctx)
		}

		timerCh = resetTimer()
	}
}

// fireDue pops every request whose instant has arrived and runs its callback
// outside the lock, so callbacks may schedule again.
func (s *Service) fireDue(ctx context.Context) {
	s.mu.Lock()

	var (
		now = s.now()
		due []Request
	)

	// Pop in instant order while the lock is held.
	for s.pending.Len() > 0 && !s.pending[0].At.After(now) {
		due = append(due, s.pending.pop())
	}

	s.mu.Unlock()

	// Callbacks run on the loop goroutine, one after another.
	for _, r := range due {
		logger.DebugKV(ctx, "Wake request fired", "id", r.ID, "at", r.At, "late_by", now.Sub(r.At).String())
		r.callback(ctx, r.ID)
	}
}
