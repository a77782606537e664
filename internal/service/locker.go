package service

import "sync"

// SessionLocks serializes work per game id. Entries are dropped once nobody holds or waits for them.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{
		locks: make(map[string]*sessionLock),
	}
}

// WithLock runs fn while holding the lock for id.
func (that *SessionLocks) WithLock(id string, fn func() error) error {
	lock := that.acquire(id)
	defer that.release(id, lock)

	return fn()
}

func (that *SessionLocks) acquire(id string) *sessionLock {
	that.mu.Lock()
	lock, ok := that.locks[id]
	if !ok {
		lock = &sessionLock{}
		that.locks[id] = lock
	}
	lock.refs++
	that.mu.Unlock()

	lock.mu.Lock()

	return lock
}

func (that *SessionLocks) release(id string, lock *sessionLock) {
	lock.mu.Unlock()

	that.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(that.locks, id)
	}
	that.mu.Unlock()
}

// size - number of tracked ids, used by tests.
func (that *SessionLocks) size() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.locks)
}
