package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Limiter controls the rate of operations against a shared budget.
type Limiter interface {
	// Allow reports whether an operation may proceed now, recording
	// it if so.
	Allow() bool

	// Wait blocks until an operation may proceed, then records it.
	Wait()

	// Reset clears all recorded operations.
	Reset()
}

// SlidingWindow admits at most maxCalls operations per window. Each
// admission is timestamped; when the window is full, callers sleep
// until the oldest timestamp ages out, plus a small jitter so bursts
// do not resynchronize.
type SlidingWindow struct {
	mu         sync.Mutex
	maxCalls   int
	windowSize time.Duration
	calls      []time.Time
	jitter     func() time.Duration
	sleep      func(time.Duration)
}

// NewSlidingWindow creates a limiter admitting maxCalls per window.
func NewSlidingWindow(maxCalls int, window time.Duration) *SlidingWindow {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{
		maxCalls:   maxCalls,
		windowSize: window,
		calls:      make([]time.Time, 0, maxCalls),
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
		},
		sleep: time.Sleep,
	}
}

// NewPerMinute creates a limiter admitting callsPerMinute per 60s.
func NewPerMinute(callsPerMinute int) *SlidingWindow {
	return NewSlidingWindow(callsPerMinute, time.Minute)
}

func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.evict(now)
	if len(sw.calls) >= sw.maxCalls {
		return false
	}
	sw.calls = append(sw.calls, now)
	return true
}

func (sw *SlidingWindow) Wait() {
	for {
		sw.mu.Lock()
		now := time.Now()
		sw.evict(now)
		if len(sw.calls) < sw.maxCalls {
			sw.calls = append(sw.calls, now)
			sw.mu.Unlock()
			return
		}
		oldest := sw.calls[0]
		sw.mu.Unlock()

		remaining := sw.windowSize - now.Sub(oldest)
		if remaining < 0 {
			remaining = 0
		}
		sw.sleep(remaining + sw.jitter())
	}
}

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.calls = sw.calls[:0]
}

// Used returns how many admissions remain recorded in the window.
func (sw *SlidingWindow) Used() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.evict(time.Now())
	return len(sw.calls)
}

// evict drops timestamps older than the window. Caller holds mu.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.calls) && sw.calls[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		sw.calls = append(sw.calls[:0], sw.calls[i:]...)
	}
}
