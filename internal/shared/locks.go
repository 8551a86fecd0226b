package shared

import (
	"fmt"
	"sync"
)

// BucketKey identifies a component+variant stock bucket.
func BucketKey(componentID, variantKey string) string {
	return fmt.Sprintf("%s:%s", componentID, variantKey)
}

// BucketLocks serialises writers per stock bucket within the process.
// Every ledger mutation must hold the bucket lock for the full
// read-mutate-write cycle.
type BucketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBucketLocks constructs BucketLocks.
func NewBucketLocks() *BucketLocks {
	return &BucketLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the bucket and returns the release function.
func (b *BucketLocks) Acquire(componentID, variantKey string) func() {
	key := BucketKey(componentID, variantKey)
	b.mu.Lock()
	lock, ok := b.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[key] = lock
	}
	b.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
