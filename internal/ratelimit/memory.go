package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryLimiter is a process-local fixed-window limiter. The key set is
// capacity-bounded; expired windows are collected before new keys are
// rejected.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*windowState
	maxKeys int
}

type windowState struct {
	count   int
	resetAt time.Time
}

// MemoryLimiterConfig tunes the limiter. Zero values select defaults.
type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter builds an in-process limiter.
func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &MemoryLimiter{
		now:     cfg.Now,
		data:    make(map[string]*windowState),
		maxKeys: cfg.MaxKeys,
	}
}

// Allow consumes one request from key's current window.
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.data[key]
	if ok && now.After(state.resetAt) {
		delete(m.data, key)
		ok = false
	}
	if !ok {
		if len(m.data) >= m.maxKeys {
			m.collect(now)
		}
		if len(m.data) >= m.maxKeys {
			return Decision{}, errors.New("rate limiter capacity exceeded")
		}
		state = &windowState{resetAt: now.Add(window)}
		m.data[key] = state
	}

	if state.count < limit {
		state.count++
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - state.count,
			ResetAt:   state.resetAt,
		}, nil
	}
	return Decision{
		Allowed:   false,
		Limit:     limit,
		Remaining: 0,
		ResetAt:   state.resetAt,
	}, nil
}

func (m *MemoryLimiter) collect(now time.Time) {
	for key, state := range m.data {
		if now.After(state.resetAt) {
			delete(m.data, key)
		}
	}
}
