package ratelimit

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain"
)

// DefaultSweepInterval is how often elapsed windows are dropped.
const DefaultSweepInterval = 5 * time.Minute

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps counters in a mutex-guarded map. A background goroutine
// removes entries whose window has elapsed.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   domain.Clock
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a store and starts its sweep loop. Call Close to stop it.
func NewMemoryStore(clock domain.Clock, sweepInterval time.Duration) *MemoryStore {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore{
		windows: make(map[string]*window),
		clock:   clock,
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *MemoryStore) Increment(_ context.Context, key string, size time.Duration) (int, time.Time, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(size)}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}

	w.count++
	return w.count, w.resetAt, nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep deletes every window that reset before now and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if w.resetAt.Before(now) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}
