package app

import "sync"

// keyedMutex provides independent mutual exclusion per string key. Used for
// the per-session terminal-transition guard and per-challenge rank
// recomputation; distinct keys never contend. Entries are reference-counted
// and dropped once the last holder unlocks, so the map does not grow with
// every session id seen over the process lifetime.
type keyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.keys == nil {
		k.keys = make(map[string]*keyLock)
	}
	entry, ok := k.keys[key]
	if !ok {
		entry = &keyLock{}
		k.keys[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.keys, key)
		}
		k.mu.Unlock()
	}
}
