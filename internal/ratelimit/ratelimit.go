// Package ratelimit implements the fixed-window request limiter applied as the
// first stage of every route pipeline.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the counting window applied when none is configured.
const DefaultWindow = time.Minute

// Config controls the limiter window and its clock.
type Config struct {
	Window time.Duration
	Now    func() time.Time
}

// Decision reports the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per key inside fixed windows. A key is typically the
// route plus the caller's address, so each route keeps its own budget.
type Limiter struct {
	mu        sync.Mutex
	window    time.Duration
	now       func() time.Time
	windows   map[string]*window
	lastSweep time.Time
}

// New constructs a Limiter, defaulting to a 60 second window and wall clock.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		window:  cfg.Window,
		now:     cfg.Now,
		windows: make(map[string]*window),
	}
}

// Window returns the configured counting window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Allow counts one request against key. Requests at or under limit within the
// current window are allowed; a non-positive limit disables limiting.
func (l *Limiter) Allow(key string, limit int) Decision {
	if l == nil || limit <= 0 {
		return Decision{Allowed: true, Limit: limit}
	}
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.window)) {
		w = &window{start: now}
		l.windows[key] = w
	}
	reset := w.start.Add(l.window)

	if w.count >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: reset.Sub(now),
			ResetAt:    reset,
		}
	}
	w.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   reset,
	}
}

// Len reports how many keys currently hold a window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweepLocked drops expired windows at most once per window length.
func (l *Limiter) sweepLocked(now time.Time) {
	if len(l.windows) == 0 || now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.window)) {
			delete(l.windows, key)
		}
	}
}
