package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.allow() {
		t.Error("request beyond burst was allowed")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)

	if !rl.allow() {
		t.Fatal("first request denied")
	}
	if rl.allow() {
		t.Fatal("second immediate request allowed")
	}

	time.Sleep(20 * time.Millisecond)
	if !rl.allow() {
		t.Error("request after refill interval was denied")
	}
}

func TestRateLimiterSanitizesArguments(t *testing.T) {
	rl := newRateLimiter(0, 0)
	if !rl.allow() {
		t.Error("limiter with sanitized defaults denied the first request")
	}
}
