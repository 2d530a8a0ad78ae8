// Package ratelimit implements a fixed-window attempt budget keyed by
// action and caller identity. Counters live in process memory; when the
// service runs as several instances each enforces its own budget.
package ratelimit

import (
	"sync"
	"time"
)

// Rule is the budget for one window: at most Limit attempts per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

type counter struct {
	windowStart time.Time
	count       int
}

// Limiter tracks per-key counters. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source. Tests advance time instead of sleeping.
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key builds the canonical counter key. The action prefix keeps budgets of
// different sensitive operations separate even for the same caller.
func Key(action, identity string) string {
	return action + ":" + identity
}

// Allow records one attempt for key and reports whether it fits the budget.
// The first attempt of a window always passes; once the window has elapsed
// the counter is replaced and counting restarts at 1.
func (l *Limiter) Allow(key string, rule Rule) bool {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return false
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) > rule.Window {
		l.counters[key] = &counter{windowStart: now, count: 1}
		return true
	}
	c.count++
	return c.count <= rule.Limit
}

// Purge drops counters whose window elapsed longer than maxAge ago. Called
// periodically so long-idle keys do not accumulate.
func (l *Limiter) Purge(maxAge time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.counters {
		if now.Sub(c.windowStart) > maxAge {
			delete(l.counters, key)
		}
	}
}

// Len reports the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
