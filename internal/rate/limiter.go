package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces calls per key.
type Limiter interface {
	// Wait blocks until key may proceed or ctx ends.
	Wait(ctx context.Context, key string) error
	// Allow reports whether key may proceed now and, if not, how long until
	// the next token.
	Allow(key string) (bool, time.Duration)
}

// MemoryLimiter keeps one token bucket per key.
type MemoryLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu    sync.Mutex
	store map[string]*rate.Limiter
}

// NewMemory allows rps events per second per key with the given burst. A
// non-positive rps disables limiting.
func NewMemory(rps float64, burst int) *MemoryLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{limit: limit, burst: burst, now: time.Now, store: make(map[string]*rate.Limiter)}
}

// PerWindow allows n events per window per key, refilled smoothly.
func PerWindow(n int, window time.Duration) *MemoryLimiter {
	if n < 1 || window <= 0 {
		return NewMemory(0, 1)
	}
	return NewMemory(float64(n)/window.Seconds(), n)
}

func (m *MemoryLimiter) bucket(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.store[key]
	if !ok {
		b = rate.NewLimiter(m.limit, m.burst)
		m.store[key] = b
	}
	return b
}

func (m *MemoryLimiter) Wait(ctx context.Context, key string) error {
	return m.bucket(key).Wait(ctx)
}

func (m *MemoryLimiter) Allow(key string) (bool, time.Duration) {
	now := m.now()
	r := m.bucket(key).ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}
