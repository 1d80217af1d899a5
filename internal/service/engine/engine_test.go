package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-clock/internal/config"
	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/host/notify"
	"github.com/oshokin/alarm-clock/internal/host/wake"
	"github.com/oshokin/alarm-clock/internal/repository/alarms"
	"github.com/oshokin/alarm-clock/internal/repository/kv"
	"github.com/oshokin/alarm-clock/internal/service/firing"
	"github.com/oshokin/alarm-clock/internal/service/poller"
)

var (
	errTestSave = errors.New("test save error")
	errTestLoad = errors.New("test load error")
)

// countingRepo wraps a Store, counts saves and can fail them.
type countingRepo struct {
	mu      sync.Mutex
	inner   *alarms.Store
	saves   int
	saveErr error
	loadErr error
}

// newCountingRepo returns a countingRepo over an empty in-memory store.
func newCountingRepo() *countingRepo {
	return &countingRepo{inner: alarms.NewStore(kv.NewMemoryKV(), "")}
}

// Load delegates to the wrapped store.
func (r *countingRepo) Load(ctx context.Context) (*alarms.LoadResult, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}

	return r.inner.Load(ctx)
}

// Save counts the call and delegates unless a failure is configured.
func (r *countingRepo) Save(ctx context.Context, list []*domain.Alarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saves++

	if r.saveErr != nil {
		return r.saveErr
	}

	return r.inner.Save(ctx, list)
}

// setSaveErr changes the configured save failure.
func (r *countingRepo) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saveErr = err
}

// stored loads the persisted set.
func (r *countingRepo) stored(t *testing.T) []*domain.Alarm {
	t.Helper()

	result, err := r.inner.Load(context.Background())
	require.NoError(t, err)

	return result.Alarms
}

// firingCall is one call captured by recordingFiring.
type firingCall struct {
	op    string
	id    string
	after time.Time
}

// recordingFiring captures the calls the engine makes.
type recordingFiring struct {
	mu    sync.Mutex
	calls []firingCall
}

// ScheduleFiring records the call.
func (f *recordingFiring) ScheduleFiring(_ context.Context, a *domain.Alarm) error {
	f.record(firingCall{op: "fire", id: a.ID})

	return nil
}

// ScheduleNext records the call and reports the next occurrence.
func (f *recordingFiring) ScheduleNext(_ context.Context, a *domain.Alarm, after time.Time) (time.Time, error) {
	f.record(firingCall{op: "next", id: a.ID, after: after})

	if !a.IsSet {
		return time.Time{}, nil
	}

	at, _ := a.NextOccurrence(after)

	return at, nil
}

// Cancel records the call.
func (f *recordingFiring) Cancel(_ context.Context, id string) {
	f.record(firingCall{op: "cancel", id: id})
}

// record appends a call.
func (f *recordingFiring) record(call firingCall) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call)
}

// ops returns "op:id" for every recorded call.
func (f *recordingFiring) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		result = append(result, call.op+":"+call.id)
	}

	return result
}

// countingScheduler forwards to the wake service and records identifiers.
type countingScheduler struct {
	*wake.Service

	mu  sync.Mutex
	ids []int
}

// ScheduleOneShotAt records the identifier and forwards the request.
func (s *countingScheduler) ScheduleOneShotAt(ctx context.Context, at time.Time, id int, cb wake.Callback, opts wake.Options) error {
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()

	return s.Service.ScheduleOneShotAt(ctx, at, id, cb, opts)
}

// scheduled returns a copy of the recorded identifiers.
func (s *countingScheduler) scheduled() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int(nil), s.ids...)
}

// recordingNotifier captures shown messages.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

// Initialize does nothing.
func (*recordingNotifier) Initialize(context.Context, notify.Channel) error {
	return nil
}

// Show records the message.
func (n *recordingNotifier) Show(_ context.Context, msg notify.Message, _ notify.Channel) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, msg)

	return nil
}

// shown returns a copy of the shown messages.
func (n *recordingNotifier) shown() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notify.Message(nil), n.messages...)
}

// fixedClock always returns instant.
func fixedClock(instant time.Time) func() time.Time {
	return func() time.Time {
		return instant
	}
}

// shiftedClock maps the bubble clock onto base.
func shiftedClock(base time.Time) func() time.Time {
	start := time.Now()

	return func() time.Time {
		return base.Add(time.Since(start))
	}
}

// newEngine builds an initialized engine over repo and firing.
func newEngine(t *testing.T, repo alarms.Repository, f Firing, opts ...Option) *Engine {
	t.Helper()

	e, err := New(repo, f, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background()))

	return e
}

// wakeAt returns a committed-ready alarm.
func wakeAt(t *testing.T, e *Engine, hour, minute int, days domain.Days) *domain.Alarm {
	t.Helper()

	a, err := e.Create(domain.Defaults{Time: &domain.TimeOfDay{Hour: hour, Minute: minute}})
	require.NoError(t, err)

	a.Days = days

	return a
}

// TestEngine_EndToEnd runs the full path from an empty store to a notification.
func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Monday, October 19 2026, ten seconds before the alarm.
		clock := shiftedClock(time.Date(2026, time.October, 19, 7, 59, 50, 0, time.UTC))

		service := wake.New(wake.WithClock(clock))
		require.NoError(t, service.Initialize(ctx))

		repo := newCountingRepo()
		scheduler := &countingScheduler{Service: service}
		notifier := new(recordingNotifier)
		coordinator := firing.NewCoordinator(scheduler, notifier, repo, firing.WithClock(clock))

		e := newEngine(t, repo, coordinator,
			WithMode(config.ModePoll),
			WithPollInterval(10*time.Second),
			WithClock(clock),
		)
		require.Empty(t, e.Snapshot())

		a := wakeAt(t, e, 8, 0, domain.Days{true})
		require.True(t, a.IsSet)

		result, err := e.Commit(ctx, a)
		require.NoError(t, err)
		require.Equal(t, Inserted, result)
		require.Equal(t, 1, repo.saves)
		require.Equal(t, []*domain.Alarm{a}, repo.stored(t))

		require.NoError(t, e.Start(ctx))

		// The 08:00:00 tick matches, schedules and fires.
		time.Sleep(10 * time.Second)
		synctest.Wait()

		require.Equal(t, []int{firing.Identifier(a.ID)}, scheduler.scheduled())
		require.Equal(t, []notify.Message{{
			ID:    firing.Identifier(a.ID),
			Title: "Alarm",
			Body:  "08:00 Time to wake up!",
		}}, notifier.shown())

		e.Stop()
		cancel()
		<-service.Done()
	})
}

// TestEngine_FiringFollowsLiveSetWhenStale fires the newest committed alarm
// even though the store still holds the previous version.
func TestEngine_FiringFollowsLiveSetWhenStale(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Monday, October 19 2026.
		clock := shiftedClock(time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC))

		service := wake.New(wake.WithClock(clock))
		require.NoError(t, service.Initialize(ctx))

		var e *Engine

		repo := newCountingRepo()
		notifier := new(recordingNotifier)
		liveSet := firing.LoaderFunc(func(ctx context.Context) (*alarms.LoadResult, error) {
			return e.Load(ctx)
		})
		coordinator := firing.NewCoordinator(service, notifier, liveSet, firing.WithRearm(true), firing.WithClock(clock))

		e = newEngine(t, repo, coordinator, WithMode(config.ModeAnalytic), WithClock(clock))
		require.NoError(t, e.Start(ctx))

		a := wakeAt(t, e, 8, 0, domain.Days{true})
		_, err := e.Commit(ctx, a)
		require.NoError(t, err)

		// Move the alarm to 09:00 while the store is failing.
		repo.setSaveErr(errTestSave)

		moved := a.Clone()
		moved.Time = domain.TimeOfDay{Hour: 9}

		result, err := e.Commit(ctx, moved)
		require.ErrorIs(t, err, errTestSave)
		require.Equal(t, Replaced, result)
		require.True(t, e.Stale())
		require.Equal(t, 8, repo.stored(t)[0].Time.Hour)

		pending := service.Pending()
		require.Len(t, pending, 1)
		require.True(t, pending[0].At.Equal(time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)))

		// Nothing rings at 08:00; the moved alarm rings at 09:00.
		time.Sleep(2*time.Hour + time.Minute)
		synctest.Wait()

		require.Equal(t, []notify.Message{{
			ID:    firing.Identifier(a.ID),
			Title: "Alarm",
			Body:  "09:00 Time to wake up!",
		}}, notifier.shown())

		pending = service.Pending()
		require.Len(t, pending, 1)
		require.Equal(t, firing.Identifier(a.ID), pending[0].ID)
		require.True(t, pending[0].At.Equal(time.Date(2026, time.October, 26, 9, 0, 0, 0, time.UTC)))

		e.Stop()
		cancel()
		<-service.Done()
	})
}

// TestEngine_DisabledWhileStaleDoesNotRing keeps a toggled-off alarm silent
// when the store still has it enabled.
func TestEngine_DisabledWhileStaleDoesNotRing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newCountingRepo()
	notifier := new(recordingNotifier)

	var e *Engine

	coordinator := firing.NewCoordinator(
		wake.New(),
		notifier,
		firing.LoaderFunc(func(ctx context.Context) (*alarms.LoadResult, error) {
			return e.Load(ctx)
		}),
	)

	e = newEngine(t, repo, coordinator, WithMode(config.ModePoll))

	a := wakeAt(t, e, 8, 0, domain.Days{true})
	_, err := e.Commit(ctx, a)
	require.NoError(t, err)

	repo.setSaveErr(errTestSave)

	toggled, err := e.ToggleIsSet(ctx, a.ID)
	require.ErrorIs(t, err, errTestSave)
	require.False(t, toggled.IsSet)
	require.True(t, repo.stored(t)[0].IsSet)

	coordinator.OnFire(ctx, firing.Identifier(a.ID))
	require.Empty(t, notifier.shown())
}

// TestEngine_ConcurrentMutationsPersistNewestSet races commits, toggles and
// deletes and expects the store to end up equal to the live set.
func TestEngine_ConcurrentMutationsPersistNewestSet(t *testing.T) {
	t.Parallel()

	const workers = 64

	ctx := context.Background()
	repo := newCountingRepo()
	e := newEngine(t, repo, new(recordingFiring))

	var wg sync.WaitGroup

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			a := &domain.Alarm{
				ID:    fmt.Sprintf("alarm-%d", i%8),
				Time:  domain.TimeOfDay{Hour: i % 24, Minute: i % 60},
				Days:  domain.Days{true},
				IsSet: true,
				Color: domain.DefaultColor,
			}

			_, err := e.Commit(ctx, a)
			assert.NoError(t, err)

			_, err = e.ToggleIsSet(ctx, a.ID)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			}

			// alarm-3 and alarm-7 are deleted as often as they are committed.
			if i%4 == 3 {
				_, err = e.Delete(ctx, a.ID)
				assert.NoError(t, err)
			}
		}()
	}

	wg.Wait()

	require.False(t, e.Stale())
	require.GreaterOrEqual(t, e.Status().Generation, uint64(workers))
	require.NotEmpty(t, e.Snapshot())
	require.Equal(t, e.Snapshot(), repo.stored(t))
}

// TestEngine_CommitInsertsAndReplaces keeps order and persists after every commit.
func TestEngine_CommitInsertsAndReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newCountingRepo()
	e := newEngine(t, repo, new(recordingFiring))

	first := wakeAt(t, e, 6, 30, domain.Days{true, true, true, true, true})
	second := &domain.Alarm{ID: "second", Time: domain.TimeOfDay{Hour: 9}, Color: domain.DefaultColor}

	result, err := e.Commit(ctx, first)
	require.NoError(t, err)
	require.Equal(t, Inserted, result)

	result, err = e.Commit(ctx, second)
	require.NoError(t, err)
	require.Equal(t, Inserted, result)

	edited := first.Clone()
	edited.Name = "Work"

	result, err = e.Commit(ctx, edited)
	require.NoError(t, err)
	require.Equal(t, Replaced, result)

	require.Equal(t, 3, repo.saves)
	require.Equal(t, []*domain.Alarm{edited, second}, e.Snapshot())
	require.Equal(t, e.Snapshot(), repo.stored(t))

	_, err = e.Commit(ctx, nil)
	require.ErrorIs(t, err, ErrInvalidAlarm)

	_, err = e.Commit(ctx, &domain.Alarm{})
	require.ErrorIs(t, err, ErrInvalidAlarm)
}

// TestEngine_DeleteMissingIsNoop leaves the set and the store untouched.
func TestEngine_DeleteMissingIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newCountingRepo()
	e := newEngine(t, repo, new(recordingFiring))

	a := wakeAt(t, e, 7, 0, domain.Days{})
	_, err := e.Commit(ctx, a)
	require.NoError(t, err)

	result, err := e.Delete(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, NotFound, result)
	require.Equal(t, 1, repo.saves)
	require.Len(t, e.Snapshot(), 1)

	result, err = e.Delete(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, Removed, result)
	require.Equal(t, 2, repo.saves)
	require.Empty(t, e.Snapshot())
	require.Empty(t, repo.stored(t))
}

// TestEngine_ToggleIsSet flips the flag and persists it.
func TestEngine_ToggleIsSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newCountingRepo()
	e := newEngine(t, repo, new(recordingFiring))

	a := wakeAt(t, e, 7, 0, domain.Days{true})
	_, err := e.Commit(ctx, a)
	require.NoError(t, err)

	toggled, err := e.ToggleIsSet(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsSet)
	require.False(t, repo.stored(t)[0].IsSet)

	toggled, err = e.ToggleIsSet(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsSet)

	_, err = e.ToggleIsSet(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestEngine_SaveFailureMarksStale keeps the change in memory and reports staleness.
func TestEngine_SaveFailureMarksStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newCountingRepo()
	e := newEngine(t, repo, new(recordingFiring))

	repo.setSaveErr(errTestSave)

	a := wakeAt(t, e, 7, 0, domain.Days{true})
	result, err := e.Commit(ctx, a)
	require.ErrorIs(t, err, errTestSave)
	require.Equal(t, Inserted, result)
	require.Len(t, e.Snapshot(), 1)
	require.True(t, e.Stale())
	require.True(t, e.Status().Stale)
	require.Empty(t, repo.stored(t))

	repo.setSaveErr(nil)

	_, err = e.ToggleIsSet(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, e.Stale())
	require.Len(t, repo.stored(t), 1)
}

// TestEngine_InitSkipsMalformed keeps the valid records and counts the rest.
func TestEngine_InitSkipsMalformed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemoryKV()
	good, err := domain.MarshalRecord(&domain.Alarm{ID: "good", Time: domain.TimeOfDay{Hour: 5}})
	require.NoError(t, err)
	require.NoError(t, backend.SetList(ctx, config.DefaultStoreKey, []string{"{}", string(good)}))

	e := newEngine(t, alarms.NewStore(backend, ""), new(recordingFiring))

	status := e.Status()
	require.Equal(t, 1, status.Alarms)
	require.Equal(t, 1, status.Skipped)
	require.Equal(t, config.ModeAnalytic, status.Mode)
	require.Equal(t, poller.StateIdle, status.State)

	got, ok := e.Get("good")
	require.True(t, ok)
	require.Equal(t, 5, got.Time.Hour)

	_, ok = e.Get("missing")
	require.False(t, ok)
}

// TestEngine_Lifecycle covers construction, init and start ordering.
func TestEngine_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := New(newCountingRepo(), new(recordingFiring), WithMode("sometimes"))
	require.Error(t, err)

	failing := newCountingRepo()
	failing.loadErr = errTestLoad

	e, err := New(failing, new(recordingFiring))
	require.NoError(t, err)
	require.ErrorIs(t, e.Init(ctx), errTestLoad)
	require.ErrorIs(t, e.Start(ctx), errNotInitialized)

	e = newEngine(t, newCountingRepo(), new(recordingFiring))
	require.Equal(t, config.ModeAnalytic, e.Mode())
	require.Error(t, e.Init(ctx))
	require.NoError(t, e.Start(ctx))
	require.ErrorIs(t, e.Start(ctx), poller.ErrAlreadyRunning)

	e.Stop()
	e.Stop()
	require.ErrorIs(t, e.Start(ctx), poller.ErrStopped)
	require.Equal(t, poller.StateStopped, e.Status().State)
}

// TestEngine_AnalyticMode arms set alarms on start and keeps wake requests in step with mutations.
func TestEngine_AnalyticMode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, time.October, 14, 7, 0, 0, 0, time.UTC)
	f := new(recordingFiring)
	e := newEngine(t, newCountingRepo(), f, WithMode(config.ModeAnalytic), WithClock(fixedClock(now)))

	on := wakeAt(t, e, 7, 30, domain.Days{false, false, true})
	_, err := e.Commit(ctx, on)
	require.NoError(t, err)

	// Not running yet: no wake traffic.
	require.Empty(t, f.ops())

	require.NoError(t, e.Start(ctx))
	require.Equal(t, []string{"next:" + on.ID}, f.ops())
	require.True(t, f.calls[0].after.Equal(now))

	off := wakeAt(t, e, 9, 0, domain.Days{true})
	off.IsSet = false
	_, err = e.Commit(ctx, off)
	require.NoError(t, err)

	_, err = e.ToggleIsSet(ctx, on.ID)
	require.NoError(t, err)

	_, err = e.Delete(ctx, off.ID)
	require.NoError(t, err)

	require.Equal(t, []string{
		"next:" + on.ID,
		"next:" + off.ID,
		"next:" + on.ID,
		"cancel:" + off.ID,
	}, f.ops())

	e.Stop()
}

// TestEngine_SnapshotIsACopy shields the set from caller mutation.
func TestEngine_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newEngine(t, newCountingRepo(), new(recordingFiring))

	path := "/sounds/a.ogg"
	a := wakeAt(t, e, 7, 0, domain.Days{true})
	a.AudioPath = &path

	_, err := e.Commit(ctx, a)
	require.NoError(t, err)

	// Mutating the committed value does not leak in.
	a.Name = "changed"

	snapshot := e.Snapshot()
	*snapshot[0].AudioPath = "/elsewhere.ogg"
	snapshot[0].Days[3] = true

	fresh := e.Snapshot()
	require.Empty(t, fresh[0].Name)
	require.Equal(t, "/sounds/a.ogg", *fresh[0].AudioPath)
	require.False(t, fresh[0].Days[3])
}

// TestResultNames covers the result string forms.
func TestResultNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "inserted", Inserted.String())
	require.Equal(t, "replaced", Replaced.String())
	require.Equal(t, "removed", Removed.String())
	require.Equal(t, "not_found", NotFound.String())
	require.Equal(t, "unknown", CommitResult(0).String())
}
