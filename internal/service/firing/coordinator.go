package firing

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/host/notify"
	"github.com/oshokin/alarm-clock/internal/host/wake"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/repository/alarms"
)

// identifierMask keeps identifiers non-negative on every platform.
const identifierMask = 0x7fffffff

// ErrSchedulingRejected is returned when the wake service refuses a request.
var ErrSchedulingRejected = errors.New("scheduling rejected")

// Scheduler is the host deferred-execution service.
type Scheduler interface {
	ScheduleOneShotAt(ctx context.Context, at time.Time, id int, cb wake.Callback, opts wake.Options) error
	Cancel(id int) bool
}

// Loader reads the alarm set that firings are resolved against.
type Loader interface {
	Load(ctx context.Context) (*alarms.LoadResult, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (*alarms.LoadResult, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*alarms.LoadResult, error) {
	return f(ctx)
}

// Coordinator schedules firings and handles their callbacks.
type Coordinator struct {
	// scheduler receives the one-shot wake requests.
	scheduler Scheduler
	// notifier posts the alarm notification.
	notifier notify.Notifier
	// loader resolves identifiers back to alarms when a request fires.
	loader Loader
	// channel is the fixed notification channel.
	channel notify.Channel
	// body is appended to the alarm time in every notification.
	body string
	// rearm schedules the next occurrence after each firing.
	rearm bool
	// now returns the current time.
	now func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithChannel sets the notification channel.
func WithChannel(channel notify.Channel) Option {
	return func(c *Coordinator) {
		c.channel = channel
	}
}

// WithBody sets the fixed notification message.
func WithBody(body string) Option {
	return func(c *Coordinator) {
		if body != "" {
			c.body = body
		}
	}
}

// WithRearm makes OnFire schedule the alarm's next occurrence.
func WithRearm(rearm bool) Option {
	return func(c *Coordinator) {
		c.rearm = rearm
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(scheduler Scheduler, notifier notify.Notifier, loader Loader, opts ...Option) *Coordinator {
	c := &Coordinator{
		scheduler: scheduler,
		notifier:  notifier,
		loader:    loader,
		body:      "Time to wake up!",
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Identifier derives the wake request identifier of an alarm ID.
// It is stable across processes and never negative.
func Identifier(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))

	return int(h.Sum32() & identifierMask)
}

// ScheduleFiring requests a wake at today's occurrence of the alarm's time.
// A pending request for the same alarm is replaced.
func (c *Coordinator) ScheduleFiring(ctx context.Context, a *domain.Alarm) error {
	now := c.now()
	at := time.Date(now.Year(), now.Month(), now.Day(), a.Time.Hour, a.Time.Minute, 0, 0, now.Location())

	return c.schedule(ctx, a, at)
}

// ScheduleNext requests a wake at the alarm's first occurrence after the given
// instant and returns it. Alarms that are unset or never recur get their pending
// request cancelled and a zero instant.
func (c *Coordinator) ScheduleNext(ctx context.Context, a *domain.Alarm, after time.Time) (time.Time, error) {
	// Unset or never-recurring alarms must not keep a stale request.
	if !a.IsSet {
		c.Cancel(ctx, a.ID)

		return time.Time{}, nil
	}

	at, ok := a.NextOccurrence(after)
	if !ok {
		c.Cancel(ctx, a.ID)

		return time.Time{}, nil
	}

	if err := c.schedule(ctx, a, at); err != nil {
		return time.Time{}, err
	}

	return at, nil
}

// Cancel drops the pending request of the alarm, if any.
func (c *Coordinator) Cancel(ctx context.Context, id string) {
	identifier := Identifier(id)
	if c.scheduler.Cancel(identifier) {
		logger.DebugKV(ctx, "Firing cancelled", "alarm_id", id, "identifier", identifier)
	}
}

// schedule sends one exact, wake-capable request for the alarm.
func (c *Coordinator) schedule(ctx context.Context, a *domain.Alarm, at time.Time) error {
	identifier := Identifier(a.ID)

	// Same identifier for every request of the alarm, so the host replaces
	// the pending one instead of adding another.
	err := c.scheduler.ScheduleOneShotAt(ctx, at, identifier, c.OnFire, wake.Options{Exact: true, Wake: true})
	if err != nil {
		logger.WarnKV(ctx, "Firing request rejected", "alarm_id", a.ID, "identifier", identifier, "at", at, "error", err)

		return fmt.Errorf("%w: alarm %s at %s: %w", ErrSchedulingRejected, a.ID, at.Format(time.RFC3339), err)
	}

	logger.InfoKV(ctx, "Firing scheduled", "alarm_id", a.ID, "name", a.DisplayName(), "identifier", identifier, "at", at)

	return nil
}

// OnFire is the wake callback. It resolves the alarm by identifier through the
// loader and posts the notification. Alarms that were disabled since the
// request was made are skipped. Failures are logged only.
func (c *Coordinator) OnFire(ctx context.Context, identifier int) {
	// Resolve the identifier against the current alarm set.
	a := c.resolve(ctx, identifier)
	if a != nil && !a.IsSet {
		logger.InfoKV(ctx, "Skipping disabled alarm", "alarm_id", a.ID, "identifier", identifier)

		return
	}

	// Post the notification. Unresolved identifiers get the generic one.
	msg := c.message(identifier, a)

	if err := c.notifier.Show(ctx, msg, c.channel); err != nil {
		logger.ErrorKV(ctx, "Failed to display alarm notification", "identifier", identifier, "error", err)
	} else {
		logger.InfoKV(ctx, "Alarm fired", "identifier", identifier, "title", msg.Title)
	}

	if !c.rearm || a == nil {
		return
	}

	// Arm the following occurrence. Rejections are already logged by schedule.
	_, _ = c.ScheduleNext(ctx, a, c.now())
}

// resolve finds the alarm for identifier in the loaded set. Returns nil when
// the set cannot be read or holds no such alarm.
func (c *Coordinator) resolve(ctx context.Context, identifier int) *domain.Alarm {
	if c.loader == nil {
		return nil
	}

	result, err := c.loader.Load(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to reload alarms for firing", "identifier", identifier, "error", err)

		return nil
	}

	for _, a := range result.Alarms {
		if Identifier(a.ID) == identifier {
			return a
		}
	}

	logger.WarnKV(ctx, "Fired identifier matches no alarm", "identifier", identifier)

	return nil
}

// message builds the notification for a fired alarm. A nil alarm yields the
// generic notification.
func (c *Coordinator) message(identifier int, a *domain.Alarm) notify.Message {
	if a == nil {
		return notify.Message{
			ID:    identifier,
			Title: domain.DefaultName,
			Body:  c.body,
		}
	}

	msg := notify.Message{
		ID:    identifier,
		Title: a.DisplayName(),
		Body:  a.Time.String() + " " + c.body,
	}

	if a.AudioPath != nil {
		msg.SoundPath = *a.AudioPath
	}

	return msg
}
