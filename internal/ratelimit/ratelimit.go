// Package ratelimit throttles command usage per key (normally a user id)
// with a sliding window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Limiter struct {
	Limit  int64
	Window time.Duration
	Clock  func() time.Time

	mu   sync.Mutex
	keys *expirable.LRU[string, *slidingwindow.Limiter]
}

// New builds a limiter that allows limit calls per window for each key.
// At most capacity keys are tracked; idle keys are dropped after two
// windows, at which point they would have been fully replenished anyway.
func New(limit int, window time.Duration, capacity int) *Limiter {
	return &Limiter{
		Limit:  int64(limit),
		Window: window,
		Clock:  time.Now,
		keys:   expirable.NewLRU[string, *slidingwindow.Limiter](capacity, nil, 2*window),
	}
}

func (l *Limiter) forKey(key string) *slidingwindow.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.keys.Get(key); ok {
		return lim
	}
	lim, _ := slidingwindow.NewLimiter(l.Window, l.Limit, func() (slidingwindow.Window, slidingwindow.StopFunc) {
		return slidingwindow.NewLocalWindow()
	})
	l.keys.Add(key, lim)
	return lim
}

// Allow records one call for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	return l.forKey(key).AllowN(l.Clock(), 1)
}

// Forget drops any state held for key.
func (l *Limiter) Forget(key string) {
	l.keys.Remove(key)
}

// Tracked is the number of keys currently held.
func (l *Limiter) Tracked() int {
	return l.keys.Len()
}
