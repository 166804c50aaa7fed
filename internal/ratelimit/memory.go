package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/miniagent/agent-platform/internal/tenant"
)

type window struct {
	count       int
	windowStart time.Time
}

// MemoryLimiter keeps windows in process memory behind a mutex. Counters are
// not shared across instances, so it only suits single-process deployments
// and tests; multi-instance deployments need the Redis limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, t tenant.Tenant) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[t.Name]
	if !ok {
		w = &window{windowStart: now}
		l.windows[t.Name] = w
	}

	if now.Sub(w.windowStart) >= t.LimitWindow {
		w.count = 0
		w.windowStart = now
	}

	if w.count >= t.RequestLimit {
		return false, nil
	}
	w.count++
	return true, nil
}
