package server

import "sync/atomic"

// GlobalConnectionLimiter caps concurrent WebSocket connections on this
// process. Lock free: slots are claimed with a compare-and-swap loop so
// the cap is never exceeded under concurrent upgrades.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire claims a connection slot. Returns false when the process is
// at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release returns a previously acquired slot.
func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the number of claimed slots.
func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// Max returns the configured cap.
func (l *GlobalConnectionLimiter) Max() int64 {
	return l.max
}
