package engine

import "sync"

// roundLocks hands out one mutex per round address so updates to the same
// round are applied strictly one at a time while distinct rounds proceed
// concurrently. Rounds are never deleted, so entries live for the process
// lifetime; the set is bounded by the number of deployed round contracts.
type roundLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRoundLocks() *roundLocks {
	return &roundLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for key and returns its unlock function.
func (l *roundLocks) acquire(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
