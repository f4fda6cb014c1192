package services

import "sync"

// UserLocks hands out one mutex per user id. The ledger service and the
// recurrence scheduler share a single instance so every read-modify-write
// cycle on a user's aggregate totals is serialized, interactive traffic and
// scheduled materializations alike.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *UserLocks) Get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[userID]; !exists {
		l.locks[userID] = &sync.Mutex{}
	}
	return l.locks[userID]
}
