package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBudget(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Fatal("fourth call should be denied")
	}
}

func TestAllowAfterWindowExpiry(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)

	if !sw.Allow() || !sw.Allow() {
		t.Fatal("first two calls should be allowed")
	}
	if sw.Allow() {
		t.Fatal("third call should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if !sw.Allow() {
		t.Fatal("call should be allowed after window expiry")
	}
}

func TestWaitBlocksUntilSlotFrees(t *testing.T) {
	sw := NewSlidingWindow(1, time.Minute)
	sw.jitter = func() time.Duration { return 0 }

	var slept time.Duration
	sw.sleep = func(d time.Duration) {
		slept += d
		// simulate the passage of time by aging the recorded call
		sw.mu.Lock()
		for i := range sw.calls {
			sw.calls[i] = sw.calls[i].Add(-d)
		}
		sw.mu.Unlock()
	}

	sw.Wait() // fills the only slot
	sw.Wait() // must block and then proceed

	if slept <= 0 {
		t.Fatal("second Wait should have slept")
	}
	if sw.Used() != 1 {
		t.Fatalf("expected 1 call recorded after expiry, got %d", sw.Used())
	}
}

func TestReset(t *testing.T) {
	sw := NewSlidingWindow(2, time.Minute)
	sw.Allow()
	sw.Allow()
	sw.Reset()

	if sw.Used() != 0 {
		t.Fatalf("expected 0 after reset, got %d", sw.Used())
	}
	if !sw.Allow() {
		t.Fatal("call should be allowed after reset")
	}
}

func TestZeroValueConstruction(t *testing.T) {
	sw := NewSlidingWindow(0, 0)
	if sw.maxCalls != 1 {
		t.Fatalf("expected maxCalls 1, got %d", sw.maxCalls)
	}
	if sw.windowSize != time.Minute {
		t.Fatalf("expected one minute window, got %v", sw.windowSize)
	}
}

func TestConcurrentAllow(t *testing.T) {
	sw := NewSlidingWindow(50, time.Minute)
	done := make(chan int, 10)

	for g := 0; g < 10; g++ {
		go func() {
			n := 0
			for i := 0; i < 10; i++ {
				if sw.Allow() {
					n++
				}
			}
			done <- n
		}()
	}

	total := 0
	for g := 0; g < 10; g++ {
		total += <-done
	}
	if total != 50 {
		t.Fatalf("expected exactly 50 admissions, got %d", total)
	}
}
