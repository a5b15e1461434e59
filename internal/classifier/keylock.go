package classifier

import "sync"

// keyLock serializes category-mutating work per product id. Entries are
// reference counted and removed when the last holder releases, so the map
// stays bounded by the number of in-flight classifications.
type keyLock struct {
	mu      sync.Mutex
	entries map[uint]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{entries: make(map[uint]*keyLockEntry)}
}

func (k *keyLock) Lock(id uint) {
	k.mu.Lock()
	entry, ok := k.entries[id]
	if !ok {
		entry = &keyLockEntry{}
		k.entries[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyLock) Unlock(id uint) {
	k.mu.Lock()
	entry := k.entries[id]
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, id)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}
