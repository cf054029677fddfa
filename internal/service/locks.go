package service

import "sync"

// keyedMutex serializes ingestion per recording ID. Two concurrent runs
// for the same ID would otherwise both pass the idempotency check before
// either writes. Entries are never released; the map is bounded by the
// number of distinct recording IDs seen by this process.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{m: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.m[key]
	if !ok {
		m = &sync.Mutex{}
		k.m[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
