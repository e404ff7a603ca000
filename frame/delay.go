package frame

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type delayed[T any] struct {
	ts    time.Time
	value T
}

// DelayBuffer holds frames until they are old enough to be released. It is safe for concurrent
// use.
type DelayBuffer[T any] struct {
	clock   clock.Clock
	maxSize int

	mu      sync.Mutex
	entries []delayed[T]
}

// NewDelayBuffer returns a buffer holding at most maxSize frames; the oldest are dropped first.
func NewDelayBuffer[T any](clk clock.Clock, maxSize int) *DelayBuffer[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &DelayBuffer[T]{clock: clk, maxSize: maxSize}
}

// Push stores a frame with its after capture timestamp.
func (b *DelayBuffer[T]) Push(ts time.Time, v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, delayed[T]{ts: ts, value: v})
	if len(b.entries) > b.maxSize {
		clear(b.entries[:len(b.entries)-b.maxSize])
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// Pop releases the newest frame at least delay old. Older frames are dropped with it.
func (b *DelayBuffer[T]) Pop(delay time.Duration) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.clock.Now()
	found := -1
	for i := len(b.entries) - 1; i >= 0; i-- {
		if now.Sub(b.entries[i].ts) >= delay {
			found = i
			break
		}
	}
	if found < 0 {
		var zero T
		return zero, false
	}
	v := b.entries[found].value
	clear(b.entries[:found+1])
	b.entries = b.entries[found+1:]
	return v, true
}

// Len returns the number of held frames.
func (b *DelayBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Reset drops every frame.
func (b *DelayBuffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.entries = b.entries[:0]
}
