package dedup

import (
	"context"
	"sync"
	"time"
)

const defaultMaxEntries = 10000

// Memory is an in-process Cache. Markers are lost on restart.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> suppress until
	max     int
	closed  bool

	now func() time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{entries: map[string]time.Time{}, max: maxEntries, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	until, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) SetWithTTL(_ context.Context, key string, ttl time.Duration) error {
	if key == "" || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	now := m.now()
	m.entries[key] = now.Add(ttl)
	if len(m.entries) > m.max {
		m.pruneLocked(now)
		// Still over cap: drop entries with the earliest expiry.
		for len(m.entries) > m.max {
			var (
				minKey string
				minT   time.Time
				set    bool
			)
			for k, t := range m.entries {
				if !set || t.Before(minT) {
					minKey, minT, set = k, t, true
				}
			}
			delete(m.entries, minKey)
		}
	}
	return nil
}

// Prune removes expired markers.
func (m *Memory) Prune(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pruneLocked(m.now()), nil
}

func (m *Memory) pruneLocked(now time.Time) int {
	n := 0
	for k, until := range m.entries {
		if !now.Before(until) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored markers, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.entries = map[string]time.Time{}
	m.mu.Unlock()
	return nil
}
