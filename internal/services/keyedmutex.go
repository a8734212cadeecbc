package services

import "sync"

// keyedMutex serializes work per key. The orchestrator locks on
// (userID, formID) so two concurrent turns for the same user cannot
// interleave their state read-modify-write; turns for different users
// proceed independently. Entries are removed once the last holder releases,
// so memory stays bounded by in-flight turns.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]*kmEntry
}

type kmEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.held == nil {
		k.held = make(map[string]*kmEntry)
	}
	e := k.held[key]
	if e == nil {
		e = &kmEntry{}
		k.held[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.held, key)
		}
		k.mu.Unlock()
	}
}
