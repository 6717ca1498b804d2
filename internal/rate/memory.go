package rate

import (
	"sync"
	"time"
)

const sweepInterval = time.Minute

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// memoryWindow is the in-process counterpart of the Redis counter script.
type memoryWindow struct {
	mu        sync.Mutex
	entries   map[string]*windowEntry
	lastSweep time.Time
}

func newMemoryWindow() *memoryWindow {
	return &memoryWindow{entries: make(map[string]*windowEntry)}
}

func (m *memoryWindow) incr(key string, window time.Duration, now time.Time) (int64, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= sweepInterval {
		for k, e := range m.entries {
			if !now.Before(e.expiresAt) {
				delete(m.entries, k)
			}
		}
		m.lastSweep = now
	}

	e, ok := m.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &windowEntry{expiresAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++

	return e.count, e.expiresAt
}

func (m *memoryWindow) reset(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *memoryWindow) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
