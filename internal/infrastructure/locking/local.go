package locking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const localPollInterval = 2 * time.Millisecond

// Local is an in-process Locker backed by one RWMutex per Sol. Suitable for a single API instance.
// Entries live only while some caller holds or waits for them.
type Local struct {
	// Wait bounds how long Lock/RLock poll a busy Sol; zero means until ctx is done.
	Wait time.Duration

	mu    sync.Mutex
	locks map[uuid.UUID]*localEntry
}

type localEntry struct {
	rw   sync.RWMutex
	refs int
}

// NewLocal returns a Local locker that gives up after wait.
func NewLocal(wait time.Duration) *Local {
	return &Local{Wait: wait, locks: make(map[uuid.UUID]*localEntry)}
}

// acquireEntry returns the Sol's entry with one more reference.
func (l *Local) acquireEntry(solID uuid.UUID) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*localEntry)
	}
	e, ok := l.locks[solID]
	if !ok {
		e = &localEntry{}
		l.locks[solID] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(solID uuid.UUID, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, solID)
	}
}

func (l *Local) Lock(ctx context.Context, solID uuid.UUID) (Lease, error) {
	e := l.acquireEntry(solID)
	if err := l.wait(ctx, e.rw.TryLock); err != nil {
		l.releaseEntry(solID, e)
		return nil, err
	}
	return &localLease{release: func() {
		e.rw.Unlock()
		l.releaseEntry(solID, e)
	}}, nil
}

func (l *Local) RLock(ctx context.Context, solID uuid.UUID) (Lease, error) {
	e := l.acquireEntry(solID)
	if err := l.wait(ctx, e.rw.TryRLock); err != nil {
		l.releaseEntry(solID, e)
		return nil, err
	}
	return &localLease{release: func() {
		e.rw.RUnlock()
		l.releaseEntry(solID, e)
	}}, nil
}

func (l *Local) wait(ctx context.Context, try func() bool) error {
	if try() {
		return nil
	}
	if l.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}
	ticker := time.NewTicker(localPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ErrBusy
		case <-ticker.C:
			if try() {
				return nil
			}
		}
	}
}

// held returns the number of Sols with a live entry.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// localLease never expires.
type localLease struct {
	once    sync.Once
	release func()
}

func (ll *localLease) Release() { ll.once.Do(ll.release) }

func (ll *localLease) Check(context.Context) error { return nil }
