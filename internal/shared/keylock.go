package shared

import (
	"fmt"
	"sort"
	"sync"
)

// StockLockKey builds the lock key for a (product, warehouse) pair.
func StockLockKey(productID, warehouseID int64) string {
	return fmt.Sprintf("stock:%d:%d", productID, warehouseID)
}

// BatchLockKey builds the lock key for a (product, warehouse, batch) triple.
func BatchLockKey(productID, warehouseID int64, batchNumber string) string {
	return fmt.Sprintf("batch:%d:%d:%s", productID, warehouseID, batchNumber)
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyLocker serializes mutators per key while unrelated keys proceed in
// parallel. Entries are reference counted and removed once released.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

// NewKeyLocker constructs a KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLockEntry)}
}

// Lock acquires the lock for key and returns its release function.
func (l *KeyLocker) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// LockMany acquires locks for every key in a deterministic order so that
// concurrent multi-line operations cannot deadlock. Duplicate keys are
// collapsed. The returned function releases all locks.
func (l *KeyLocker) LockMany(keys []string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	sort.Strings(uniq)

	releases := make([]func(), 0, len(uniq))
	for _, key := range uniq {
		releases = append(releases, l.Lock(key))
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
