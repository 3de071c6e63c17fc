package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used to throttle progress pushes and requests.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter refills r tokens per second up to a burst of b.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Reserve takes the next token and returns how long the caller must wait
// before acting on it. Zero means now.
func (l *Limiter) Reserve() time.Duration {
	r := l.inner.Reserve()
	if !r.OK() {
		return 0
	}
	return r.Delay()
}

func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}
