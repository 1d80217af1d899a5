package wake

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects fired identifiers with their firing time.
type recorder struct {
	mu    sync.Mutex
	fired []int
	at    []time.Time
}

// callback records the identifier and the current time.
func (r *recorder) callback(_ context.Context, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fired = append(r.fired, id)
	r.at = append(r.at, time.Now())
}

// ids returns a copy of the fired identifiers.
func (r *recorder) ids() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]int(nil), r.fired...)
}

// times returns a copy of the firing times.
func (r *recorder) times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]time.Time(nil), r.at...)
}

// startService initializes a service bound to a cancellable context.
func startService(t *testing.T, opts ...Option) (*Service, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	s := New(opts...)
	require.NoError(t, s.Initialize(ctx))

	return s, func() {
		cancel()
		<-s.Done()
	}
}

// TestService_AddAndFire fires a request at its instant and removes it from the pending set.
func TestService_AddAndFire(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)
		at := time.Now().Add(100 * time.Millisecond)

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), at, 7, rec.callback, Options{Exact: true, Wake: true}))
		require.Len(t, s.Pending(), 1)

		time.Sleep(50 * time.Millisecond)
		synctest.Wait()
		require.Empty(t, rec.ids())

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		require.Equal(t, []int{7}, rec.ids())
		require.True(t, rec.times()[0].Equal(at))
		require.Empty(t, s.Pending())
	})
}

// TestService_ReplaceSameID keeps exactly one pending request per identifier.
func TestService_ReplaceSameID(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)
		now := time.Now()

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), now.Add(time.Hour), 1, rec.callback, Options{}))
		require.NoError(t, s.ScheduleOneShotAt(context.Background(), now.Add(2*time.Hour), 1, rec.callback, Options{Exact: true}))
		require.NoError(t, s.ScheduleOneShotAt(context.Background(), now.Add(30*time.Minute), 2, rec.callback, Options{}))

		pending := s.Pending()
		require.Len(t, pending, 2)
		require.Equal(t, 2, pending[0].ID)
		require.Equal(t, 1, pending[1].ID)
		require.True(t, pending[1].At.Equal(now.Add(2*time.Hour)))
		require.True(t, pending[1].Options.Exact)

		time.Sleep(3 * time.Hour)
		synctest.Wait()
		require.Equal(t, []int{2, 1}, rec.ids())
	})
}

// TestService_Rejections covers every rejected request shape.
func TestService_Rejections(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := new(recorder)
		ctx := context.Background()

		// Not initialized.
		idle := New()
		require.ErrorIs(t, idle.ScheduleOneShotAt(ctx, time.Now().Add(time.Minute), 1, rec.callback, Options{}), ErrRejected)

		s, stop := startService(t, WithLateGrace(30*time.Second))
		defer stop()

		require.ErrorIs(t, s.ScheduleOneShotAt(ctx, time.Time{}, 1, rec.callback, Options{}), ErrRejected)
		require.ErrorIs(t, s.ScheduleOneShotAt(ctx, time.Now().Add(time.Minute), 1, nil, Options{}), ErrRejected)
		require.ErrorIs(t, s.ScheduleOneShotAt(ctx, time.Now().Add(-time.Minute), 1, rec.callback, Options{}), ErrRejected)
		require.Empty(t, s.Pending())
	})
}

// TestService_LateWithinGraceFiresImmediately accepts slightly elapsed instants.
func TestService_LateWithinGraceFiresImmediately(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)
		start := time.Now()

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), start.Add(-20*time.Second), 3, rec.callback, Options{}))
		synctest.Wait()

		require.Equal(t, []int{3}, rec.ids())
		require.True(t, rec.times()[0].Equal(start))
	})
}

// TestService_CancelBeforeFire drops the pending request.
func TestService_CancelBeforeFire(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), time.Now().Add(time.Second), 9, rec.callback, Options{}))
		require.True(t, s.Cancel(9))
		require.False(t, s.Cancel(9))

		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Empty(t, rec.ids())
	})
}

// TestService_LongSleepIsCapped still fires requests far beyond the sleep cap.
func TestService_LongSleepIsCapped(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)
		at := time.Now().Add(5*time.Minute + 500*time.Millisecond)

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), at, 4, rec.callback, Options{}))

		time.Sleep(5 * time.Minute)
		synctest.Wait()
		require.Empty(t, rec.ids())

		time.Sleep(time.Second)
		synctest.Wait()
		require.Equal(t, []int{4}, rec.ids())
		require.True(t, rec.times()[0].Equal(at))
	})
}

// TestService_CallbackMayReschedule lets a callback re-arm its own identifier.
func TestService_CallbackMayReschedule(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, stop := startService(t)
		defer stop()

		rec := new(recorder)

		var rearm Callback

		rearm = func(ctx context.Context, id int) {
			rec.callback(ctx, id)

			if len(rec.ids()) < 3 {
				require.NoError(t, s.ScheduleOneShotAt(ctx, time.Now().Add(time.Hour), id, rearm, Options{}))
			}
		}

		require.NoError(t, s.ScheduleOneShotAt(context.Background(), time.Now().Add(time.Hour), 5, rearm, Options{}))

		time.Sleep(4 * time.Hour)
		synctest.Wait()
		require.Equal(t, []int{5, 5, 5}, rec.ids())
		require.Empty(t, s.Pending())
	})
}

// TestService_Lifecycle rejects double initialization and stops accepting requests after cancel.
func TestService_Lifecycle(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := New()

		require.NoError(t, s.Initialize(ctx))
		require.Error(t, s.Initialize(ctx))

		cancel()
		<-s.Done()

		err := s.ScheduleOneShotAt(context.Background(), time.Now().Add(time.Minute), 1, new(recorder).callback, Options{})
		require.ErrorIs(t, err, ErrRejected)
	})
}
