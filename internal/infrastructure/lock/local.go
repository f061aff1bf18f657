// Package lock provides the keyed lockers behind core/lock.Locker: an
// in-process one for the local backend and a Redis one for deployments
// that run several server instances.
package lock

import (
	"context"
	"sync"
	"time"

	corelock "supplyhub/internal/core/lock"
)

// Local is an in-process keyed mutex. Waiters give up when their context
// ends or after the configured wait.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
	wait  time.Duration
}

type localEntry struct {
	token chan struct{}
	refs  int
}

var _ corelock.Locker = (*Local)(nil)

// NewLocal creates a locker. A zero wait blocks until ctx is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{locks: make(map[string]*localEntry), wait: wait}
}

func (l *Local) Acquire(ctx context.Context, key string) (corelock.Release, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{token: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, corelock.ErrNotObtained
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.unref(key, e)
		})
	}, nil
}

func (l *Local) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports the number of keys with holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
