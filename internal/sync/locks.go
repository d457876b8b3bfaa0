package sync

import "sync"

// keyedMutex serializes work per entity key. The local store gives no
// transactional isolation for the read-then-write diff pattern, so two
// concurrent syncs of the same entity must never interleave. Mutexes are
// kept for the life of the process; the entity space is small enough that
// this never matters.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for a key, creating it on first use, and returns
// the unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, exists := k.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}

	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
