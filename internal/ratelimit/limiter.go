package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time until the current window resets; only set on
	// denial.
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter decides whether a request identified by key is admitted under a
// policy. Implementations must be safe for concurrent use; concurrent checks
// on the same key must not lose updates.
type Limiter interface {
	Check(ctx context.Context, key string, policy Policy) (Result, error)
}

// MemoryLimiter is the in-process Limiter. State is a per-(policy, key)
// fixed-window counter guarded by a single mutex; it resets on process
// restart, which is acceptable for abuse mitigation.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is swappable for deterministic window-expiry tests.
	now func() time.Time
}

type window struct {
	start time.Time
	end   time.Time
	count int
}

// NewMemoryLimiter creates an in-process fixed-window limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Check implements Limiter. It never returns an error.
func (l *MemoryLimiter) Check(_ context.Context, key string, policy Policy) (Result, error) {
	now := l.now()
	k := policy.Name + "\x00" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[k]
	if !ok || !now.Before(w.end) {
		// Absent or expired: start a fresh window with this request counted
		w = &window{start: now, end: now.Add(policy.Window), count: 1}
		l.windows[k] = w
		return Result{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests - 1,
			ResetAt:   w.end,
		}, nil
	}

	w.count++
	if w.count <= policy.MaxRequests {
		return Result{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests - w.count,
			ResetAt:   w.end,
		}, nil
	}

	return Result{
		Allowed:    false,
		Limit:      policy.MaxRequests,
		Remaining:  0,
		RetryAfter: w.end.Sub(now),
		ResetAt:    w.end,
	}, nil
}

// StartJanitor removes expired windows periodically until ctx is done.
// Without it, keys seen once would sit in the map forever.
func (l *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.cleanup()
			}
		}
	}()
}

func (l *MemoryLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, w := range l.windows {
		if !now.Before(w.end) {
			delete(l.windows, k)
		}
	}
}
