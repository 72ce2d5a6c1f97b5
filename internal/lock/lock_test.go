package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	convergeerrors "converge/pkg/errors"
)

// fakeResource frees itself after a configurable number of attempts.
type fakeResource struct {
	name       string
	busyFor    int
	attempts   int
	releases   int
	releaseErr error
}

func (r *fakeResource) Name() string { return r.name }

func (r *fakeResource) TryAcquire(ctx context.Context) (func() error, bool, error) {
	r.attempts++
	if r.attempts <= r.busyFor {
		return nil, false, nil
	}
	return func() error {
		r.releases++
		return r.releaseErr
	}, true, nil
}

// fakeClock advances its time by the slept duration without blocking.
type fakeClock struct {
	mu  sync.Mutex
	t   time.Time
	nap time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.nap += d
	return ctx.Err()
}

func TestAcquire_FreeResourceReturnsImmediately(t *testing.T) {
	clock := newFakeClock()
	res := &fakeResource{name: "dpkg"}
	l := New(res, withClock(clock.now, clock.sleep))

	token, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, "dpkg", token.Resource())
	require.Equal(t, 1, res.attempts)
	require.Zero(t, clock.nap, "no sleep when the resource is free")
}

func TestAcquire_WaitsOutContention(t *testing.T) {
	clock := newFakeClock()
	res := &fakeResource{name: "dpkg", busyFor: 3}
	l := New(res, WithPollInterval(5*time.Second), WithMaxWait(300*time.Second), withClock(clock.now, clock.sleep))

	token, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, res.attempts)
	require.Equal(t, 15*time.Second, clock.nap)
	require.NoError(t, token.Release())
	require.Equal(t, 1, res.releases)
}

func TestAcquire_TimeoutWhenNeverFree(t *testing.T) {
	clock := newFakeClock()
	res := &fakeResource{name: "dpkg", busyFor: 1 << 30}
	l := New(res, WithPollInterval(5*time.Second), WithMaxWait(300*time.Second), withClock(clock.now, clock.sleep))

	_, err := l.Acquire(context.Background())

	var timeoutErr *convergeerrors.LockTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	require.Equal(t, "dpkg", timeoutErr.Resource)
	require.Equal(t, 300*time.Second, timeoutErr.Waited)

	// Timeout is honored within maxWait + one poll interval of clock time.
	require.LessOrEqual(t, clock.nap, 305*time.Second)
}

func TestAcquire_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := &fakeResource{name: "dpkg", busyFor: 1 << 30}
	l := New(res, WithPollInterval(time.Millisecond), WithMaxWait(time.Minute))

	_, err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestToken_ReleaseIsIdempotent(t *testing.T) {
	res := &fakeResource{name: "dpkg"}
	l := New(res)

	token, err := l.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, token.Release())
	require.NoError(t, token.Release())
	require.Equal(t, 1, res.releases)
}

func TestToken_ReleaseReportsFirstError(t *testing.T) {
	relErr := errors.New("unlock failed")
	res := &fakeResource{name: "dpkg", releaseErr: relErr}
	l := New(res)

	token, err := l.Acquire(context.Background())
	require.NoError(t, err)

	require.ErrorIs(t, token.Release(), relErr)
	require.ErrorIs(t, token.Release(), relErr)
	require.Equal(t, 1, res.releases)
}
