package registry

import (
	"context"
	"sync"
	"time"

	"github.com/letinc/beacon/internal/metrics"
)

const janitorInterval = 10 * time.Minute

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is the default single-process store: a mutex-guarded map with
// a background janitor that evicts expired entries.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a memory store whose entries expire after ttl.
// A ttl of zero disables eviction.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	if ttl > 0 {
		go s.janitor()
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, trackingID string, e Entry) error {
	var expires time.Time
	if s.ttl > 0 {
		expires = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[trackingID] = memoryEntry{entry: e, expiresAt: expires}
	s.mu.Unlock()

	metrics.RegistryEntries.Set(float64(s.Len()))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, trackingID string) (Entry, bool, error) {
	s.mu.RLock()
	me, ok := s.entries[trackingID]
	s.mu.RUnlock()

	if !ok {
		return Entry{}, false, nil
	}
	// Expired entries the janitor has not reached yet are already stale.
	if !me.expiresAt.IsZero() && time.Now().After(me.expiresAt) {
		return Entry{}, false, nil
	}
	return me.entry, true, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, me := range s.entries {
		if me.expiresAt.IsZero() || now.Before(me.expiresAt) {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *MemoryStore) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	for id, me := range s.entries {
		if !me.expiresAt.IsZero() && now.After(me.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	metrics.RegistryEntries.Set(float64(s.Len()))
}
