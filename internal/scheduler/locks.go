package scheduler

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// orgLocks serializes passes per (pass, org) inside this process.
// Distributed coordination is out of scope; a second scheduler instance
// needs external leader election.
type orgLocks struct {
	mu    *sync.Mutex
	locks map[string]*sync.Mutex
}

func newOrgLocks() orgLocks {
	return orgLocks{
		mu:    &sync.Mutex{},
		locks: make(map[string]*sync.Mutex),
	}
}

// tryAcquire returns a release func, or ok=false when the same pass is
// already in flight for the org.
func (l orgLocks) tryAcquire(pass string, orgID snowflake.ID) (func(), bool) {
	key := fmt.Sprintf("%s/%d", pass, orgID)

	l.mu.Lock()
	lock, exists := l.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	if !lock.TryLock() {
		return nil, false
	}
	return lock.Unlock, true
}
