package util

import (
	"sync"
	"time"
)

// LimiterRegistry hands out one Limiter per key, such as a connection id.
// Entries unused for longer than ttl are swept until Close.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     float64
	burst    int
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *Limiter
	lastUsed time.Time
}

func NewLimiterRegistry(r float64, b int, ttl time.Duration) *LimiterRegistry {
	reg := &LimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    b,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go reg.sweepLoop()
	return reg
}

func (r *LimiterRegistry) Get(key string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: NewLimiter(r.rate, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.limiter
}

// Remove drops the limiter for key, e.g. when its connection closes.
func (r *LimiterRegistry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, key)
}

func (r *LimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// Close stops the sweeper. It is safe to call more than once.
func (r *LimiterRegistry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *LimiterRegistry) sweepLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *LimiterRegistry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.limiters {
		if now.Sub(entry.lastUsed) > r.ttl {
			delete(r.limiters, key)
		}
	}
}
