package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterSweepsIdleBuckets(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 10, Burst: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	if got := rl.Stats().Clients; got != 2 {
		t.Fatalf("Expected 2 clients, got %d", got)
	}

	rl.sweep(time.Now().Add(90 * time.Minute))
	if got := rl.Stats().Clients; got != 2 {
		t.Errorf("Expected buckets idle for under two intervals to stay, got %d", got)
	}

	rl.sweep(time.Now().Add(3 * time.Hour))
	if got := rl.Stats().Clients; got != 0 {
		t.Errorf("Expected idle buckets to be dropped, got %d", got)
	}
}

func TestIPRateLimiterCounts(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		rl.Allow("10.0.0.1")
	}
	stats := rl.Stats()
	if stats.Allowed != 2 || stats.Rejected != 3 {
		t.Errorf("Expected 2 allowed / 3 rejected, got %+v", stats)
	}
}

func TestSpectatorSlots(t *testing.T) {
	slots := newSpectatorSlots(2)

	if !slots.acquire("a") || !slots.acquire("a") {
		t.Fatal("Expected two slots for a")
	}
	if slots.acquire("a") {
		t.Error("Expected the third slot to be refused")
	}
	if !slots.acquire("b") {
		t.Error("Expected b to have its own slots")
	}

	slots.release("a")
	if !slots.acquire("a") {
		t.Error("Expected a released slot to be reusable")
	}

	slots.release("b")
	slots.release("b") // extra release is ignored
	if _, ok := slots.held["b"]; ok {
		t.Error("Expected b to be forgotten once it holds nothing")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		want   string
	}{
		{"remote addr", "", "", "192.0.2.1"},
		{"first forwarded", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"garbage forwarded falls through", "not-an-ip", "198.51.100.4", "198.51.100.4"},
		{"garbage everywhere", "nope", "nope", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
