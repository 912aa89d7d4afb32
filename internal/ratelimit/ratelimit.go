// Package ratelimit bounds request rates on the public endpoints.
package ratelimit

import (
	"context"
	"time"
)

// Decision reports the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter enforces a fixed-window request budget per key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
