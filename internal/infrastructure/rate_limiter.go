package infrastructure

import (
	"sync"
	"time"

	"intakehub/internal/entities"
	"intakehub/internal/interfaces"
)

// MemoryCounterStore is the single-node CounterStore: a mutex-guarded map of
// active windows with periodic cleanup of expired entries.
type MemoryCounterStore struct {
	mu      sync.Mutex
	windows map[string]interfaces.CounterWindow
	now     func() time.Time
}

// NewMemoryCounterStore creates an in-process counter store. The clock is
// injectable for tests; pass nil for time.Now.
func NewMemoryCounterStore(now func() time.Time) *MemoryCounterStore {
	if now == nil {
		now = time.Now
	}
	s := &MemoryCounterStore{
		windows: make(map[string]interfaces.CounterWindow),
		now:     now,
	}
	go s.cleanup()
	return s
}

// Increment bumps the counter for key, starting a fresh window when none is
// active or the active one has elapsed.
func (s *MemoryCounterStore) Increment(key string, window time.Duration) interfaces.CounterWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, exists := s.windows[key]
	if !exists || !now.Before(w.ResetAt) {
		w = interfaces.CounterWindow{Count: 1, ResetAt: now.Add(window)}
		s.windows[key] = w
		return w
	}

	w.Count++
	s.windows[key] = w
	return w
}

// Reset drops the active window for a key.
func (s *MemoryCounterStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
}

// cleanup removes expired windows periodically so the map stays bounded.
func (s *MemoryCounterStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		s.mu.Lock()
		now := s.now()
		for key, w := range s.windows {
			if !now.Before(w.ResetAt) {
				delete(s.windows, key)
			}
		}
		s.mu.Unlock()
	}
}

// ChannelLimit is the fixed-window budget for one inbound channel.
type ChannelLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultChannelLimits mirrors the admission budgets per channel.
var DefaultChannelLimits = map[entities.InputSource]ChannelLimit{
	entities.SourceAPI:     {Limit: 60, Window: time.Minute},
	entities.SourceSMS:     {Limit: 30, Window: time.Minute},
	entities.SourceWebhook: {Limit: 60, Window: time.Minute},
}

// DefaultLimit applies to channels without an explicit budget.
var DefaultLimit = ChannelLimit{Limit: 30, Window: time.Minute}

// RateLimiter is the fixed-window admission gate keyed by principal.
// A principal has at most one active window at a time.
type RateLimiter struct {
	store  interfaces.CounterStore
	limits map[entities.InputSource]ChannelLimit
}

// NewRateLimiter creates a limiter over the given counter store. Pass nil
// limits to use the defaults.
func NewRateLimiter(store interfaces.CounterStore, limits map[entities.InputSource]ChannelLimit) *RateLimiter {
	if limits == nil {
		limits = DefaultChannelLimits
	}
	return &RateLimiter{store: store, limits: limits}
}

// Allow consumes one slot for the principal on the given channel. Once the
// count reaches the channel limit, further requests in the window are
// rejected with remaining 0 and the window's reset time.
func (rl *RateLimiter) Allow(principal string, source entities.InputSource) entities.RateLimitResult {
	limit, ok := rl.limits[source]
	if !ok {
		limit = DefaultLimit
	}

	w := rl.store.Increment(string(source)+":"+principal, limit.Window)
	remaining := limit.Limit - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return entities.RateLimitResult{
		Allowed:   w.Count <= limit.Limit,
		Limit:     limit.Limit,
		Remaining: remaining,
		ResetAt:   w.ResetAt,
	}
}

// Reset clears the principal's window on a channel, useful after a quota
// reset or operator override.
func (rl *RateLimiter) Reset(principal string, source entities.InputSource) {
	rl.store.Reset(string(source) + ":" + principal)
}
