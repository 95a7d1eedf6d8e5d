package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Counts are not shared between
// server instances; use RedisStore when more than one instance serves traffic.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	cleanup  time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// MemoryConfig holds MemoryStore configuration
type MemoryConfig struct {
	Cleanup time.Duration // Sweep interval for expired records (default 5 minutes)
	Now     func() time.Time
}

// NewMemoryStore creates a store and starts its sweep loop
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.Cleanup == 0 {
		cfg.Cleanup = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &MemoryStore{
		records:  make(map[string]*Record),
		cleanup:  cfg.Cleanup,
		now:      cfg.Now,
		stopChan: make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// MemoryStoreFactory returns a factory giving every policy its own MemoryStore.
func MemoryStoreFactory(cfg MemoryConfig) StoreFactory {
	return func(string) CounterStore {
		return NewMemoryStore(cfg)
	}
}

// Stop stops the sweep loop. Safe to call more than once.
func (m *MemoryStore) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(m.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep(m.now())
		case <-m.stopChan:
			return
		}
	}
}

// sweep drops every record whose window has closed. An expired record is
// treated as absent by Take, so dropping it never changes a decision.
func (m *MemoryStore) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, rec := range m.records {
		if rec.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of records currently held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Take(_ context.Context, key string, max int, window time.Duration, now time.Time) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[key]
	if !exists || rec.Expired(now) {
		rec = &Record{Key: key, Count: 1, WindowResetAt: now.Add(window)}
		m.records[key] = rec
		return *rec, true, nil
	}

	if rec.Count < max {
		rec.Count++
		return *rec, true, nil
	}

	return *rec, false, nil
}

func (m *MemoryStore) Get(_ context.Context, key string, now time.Time) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[key]
	if !exists || rec.Expired(now) {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}
