// Package lock serializes access to a shared external resource, typically
// a package manager's lock files. Acquisition polls until the resource is
// free or a wait ceiling elapses; the returned token guarantees release on
// every exit path.
package lock

import (
	"context"
	"sync"
	"time"

	"converge/internal/logger"
	convergeerrors "converge/pkg/errors"
)

// Resource is a contended external resource that grants exclusive access
// when free. TryAcquire never blocks: it either takes the resource and
// returns its release function, or reports that another holder exists.
type Resource interface {
	Name() string
	TryAcquire(ctx context.Context) (release func() error, acquired bool, err error)
}

// Lock polls a Resource until it can be acquired.
type Lock struct {
	resource     Resource
	pollInterval time.Duration
	maxWait      time.Duration
	log          *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option adjusts Lock behaviour.
type Option func(*Lock)

// WithPollInterval sets the delay between acquisition attempts.
func WithPollInterval(d time.Duration) Option {
	return func(l *Lock) { l.pollInterval = d }
}

// WithMaxWait sets the total acquisition ceiling.
func WithMaxWait(d time.Duration) Option {
	return func(l *Lock) { l.maxWait = d }
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Lock) { l.log = log }
}

// withClock injects time hooks for tests.
func withClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Lock) {
		l.now = now
		l.sleep = sleep
	}
}

// New creates a Lock over the given resource. Defaults mirror the apt
// lock-wait scripts: poll every 5 seconds, give up after 300.
func New(resource Resource, opts ...Option) *Lock {
	l := &Lock{
		resource:     resource,
		pollInterval: 5 * time.Second,
		maxWait:      300 * time.Second,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire polls until the resource is free or the wait ceiling elapses.
// A free resource is taken on the first attempt without sleeping. On
// timeout it returns a LockTimeoutError naming the resource and the time
// waited.
func (l *Lock) Acquire(ctx context.Context) (*Token, error) {
	start := l.now()
	deadline := start.Add(l.maxWait)
	attempt := 0

	for {
		release, acquired, err := l.resource.TryAcquire(ctx)
		if err != nil {
			return nil, err
		}
		if acquired {
			if attempt > 0 {
				l.log.Component("lock").With(map[string]any{
					"resource": l.resource.Name(),
					"waited":   l.now().Sub(start).String(),
				}).Info("resource lock acquired after wait")
			}
			return newToken(l.resource.Name(), release), nil
		}

		if !l.now().Before(deadline) {
			return nil, convergeerrors.NewLockTimeoutError(l.resource.Name(), l.maxWait)
		}

		attempt++
		l.log.Component("lock").With(map[string]any{
			"resource": l.resource.Name(),
			"attempt":  attempt,
		}).Debug("resource busy, waiting")

		if err := l.sleep(ctx, l.pollInterval); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Token represents a held lock. Release is idempotent and safe to defer
// on every exit path.
type Token struct {
	resource string
	once     sync.Once
	release  func() error
	err      error
}

func newToken(resource string, release func() error) *Token {
	return &Token{resource: resource, release: release}
}

// NoopToken returns a token over nothing, for runs whose steps do not
// contend on an external resource.
func NoopToken() *Token {
	return newToken("none", nil)
}

// Resource returns the name of the locked resource.
func (t *Token) Resource() string {
	return t.resource
}

// Release frees the resource. Repeated calls return the first release
// error and do nothing else.
func (t *Token) Release() error {
	t.once.Do(func() {
		if t.release != nil {
			t.err = t.release()
		}
	})
	return t.err
}
