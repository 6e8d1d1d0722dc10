package natsclient

import (
	"sync"
	"time"
)

const initialBreakerWait = time.Second

// breaker makes Connect fail fast after threshold consecutive failures. Each
// time it trips, the wait before it half-opens doubles up to maxWait.
type breaker struct {
	threshold int32
	maxWait   time.Duration

	mu       sync.Mutex
	failures int32 // since the last successful connect
	streak   int32 // toward the next trip
	wait     time.Duration
	lastFail time.Time
	open     bool
}

func newBreaker(threshold int32, maxWait time.Duration) *breaker {
	return &breaker{threshold: threshold, maxWait: maxWait, wait: initialBreakerWait}
}

// fail records a failed attempt. tripped is true when this failure opened the
// breaker; the caller half-opens it again after wait.
func (b *breaker) fail(now time.Time) (tripped bool, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.streak++
	b.lastFail = now
	if b.streak < b.threshold {
		return false, 0
	}

	b.streak = 0
	wait = b.wait
	b.wait = min(b.wait*2, b.maxWait)
	if b.open {
		return false, wait
	}
	b.open = true
	return true, wait
}

// halfOpen lets the next Connect try again.
func (b *breaker) halfOpen() {
	b.mu.Lock()
	b.open = false
	b.mu.Unlock()
}

// reset forgets every failure after a successful connect.
func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.streak = 0
	b.wait = initialBreakerWait
	b.lastFail = time.Time{}
	b.open = false
}

func (b *breaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

func (b *breaker) snapshot() (failures int32, lastFail time.Time, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.lastFail, b.wait
}
