package services

import (
	"context"
	"sync"
	"time"
)

type counterWindow struct {
	count  int
	start  time.Time
	window time.Duration
}

// MemoryCounterStore is a process-local CounterStore. Limits are per process.
type MemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]*counterWindow
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{windows: make(map[string]*counterWindow)}
}

func (s *MemoryCounterStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.Sub(w.start) >= w.window {
		s.windows[key] = &counterWindow{count: 1, start: now, window: window}
		return 1, nil
	}

	w.count++
	return w.count, nil
}

// Sweep drops expired windows and returns how many were removed
func (s *MemoryCounterStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.Sub(w.start) >= w.window {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
