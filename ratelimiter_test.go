package tangguh

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Error("empty bucket should deny")
	}
	if rl.Tokens() != 0 {
		t.Errorf("tokens = %d, want 0", rl.Tokens())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow() {
		t.Fatal("first request should be allowed")
	}
	if rl.Allow() {
		t.Fatal("second immediate request should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.Allow() {
		t.Error("bucket should refill after the interval")
	}
}

func TestRateLimiterCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(2, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	// Long idle must not accumulate beyond the burst size.
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst should be available")
	}
	if rl.Allow() {
		t.Error("refill must cap at maxTokens")
	}
}
