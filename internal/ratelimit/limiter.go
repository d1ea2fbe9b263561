// README: Fixed-window request limiter keyed by caller (typically "ip:sessionId").
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 20
	DefaultWindow      = 60 * time.Second
	DefaultMaxKeys     = 10000
)

// Limiter decides whether one more request for key is admitted.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type fixedWindow struct {
	count int
	start time.Time
}

// Local is an in-process fixed-window limiter. State lives in a bounded map owned
// by the instance, so limits are per-process.
type Local struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	maxKeys int
	now     func() time.Time
	entries map[string]*fixedWindow
}

type Option func(*Local)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Local) { l.now = now }
}

func WithMaxKeys(n int) Option {
	return func(l *Local) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

func NewLocal(max int, window time.Duration, opts ...Option) *Local {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Local{
		max:     max,
		window:  window,
		maxKeys: DefaultMaxKeys,
		now:     time.Now,
		entries: make(map[string]*fixedWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts the request and reports whether it is within the limit. A window
// resets once more than the window duration has elapsed since it started.
func (l *Local) Allow(_ context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.maxKeys {
			l.evictLocked(now)
		}
		w = &fixedWindow{start: now}
		l.entries[key] = w
	} else if now.Sub(w.start) > l.window {
		w.count = 0
		w.start = now
	}
	w.count++
	return w.count <= l.max
}

// evictLocked drops expired windows; if none expired it drops the oldest one.
func (l *Local) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, w := range l.entries {
		if now.Sub(w.start) > l.window {
			delete(l.entries, k)
			continue
		}
		if oldestKey == "" || w.start.Before(oldest) {
			oldestKey, oldest = k, w.start
		}
	}
	if len(l.entries) >= l.maxKeys && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// Len returns the number of tracked keys.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Key builds the limiter key for one caller.
func Key(ip, sessionID string) string {
	return ip + ":" + sessionID
}
