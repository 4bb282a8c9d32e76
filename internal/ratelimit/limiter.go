// Package ratelimit bounds authentication attempts per client with a fixed
// window counter kept in a swappable store.
package ratelimit

import (
	"context"
	"sync/atomic"
	"time"
)

// Store counts hits per key within a fixed window. Incr returns the count
// after the increment and the instant the current window closes.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Reset(ctx context.Context) error
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	enabled atomic.Bool
	now     func() time.Time
}

func New(store Store, limit int, window time.Duration) *Limiter {
	l := &Limiter{store: store, limit: limit, window: window, now: time.Now}
	l.enabled.Store(true)
	return l
}

func (l *Limiter) Limit() int              { return l.limit }
func (l *Limiter) Window() time.Duration   { return l.window }
func (l *Limiter) Enabled() bool           { return l.enabled.Load() }
func (l *Limiter) SetEnabled(enabled bool) { l.enabled.Store(enabled) }

// Allow counts one attempt for key. When the store fails the attempt is
// allowed and the error returned for logging.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	d := Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}
	if !l.Enabled() {
		return d, nil
	}

	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return d, err
	}

	d.ResetAt = resetAt
	d.Remaining = max(l.limit-int(count), 0)
	if count > int64(l.limit) {
		d.Allowed = false
		d.RetryAfter = max(resetAt.Sub(l.now()), time.Second)
	}
	return d, nil
}

// Reset clears every counter. Tests call it between cases.
func (l *Limiter) Reset(ctx context.Context) error {
	return l.store.Reset(ctx)
}
