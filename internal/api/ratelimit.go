package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures one token bucket per client IP
type RateLimitConfig struct {
	RequestsPerSecond float64       // Tokens refilled per second
	Burst             int           // Bucket size
	CleanupInterval   time.Duration // Idle buckets are dropped after twice this
}

// DefaultRateLimitConfig covers spectators polling state, leaderboard and frames
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 10,
	Burst:             20,
	CleanupInterval:   5 * time.Minute,
}

// RestartRateLimitConfig guards POST /api/race/restart: two restarts at once,
// then one every five seconds.
var RestartRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 0.2,
	Burst:             2,
	CleanupInterval:   5 * time.Minute,
}

// LimiterStats is what /health reports for each limiter
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Clients  int    `json:"clients"` // IPs with a live bucket
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter rejects clients that spend their bucket with 429
type IPRateLimiter struct {
	cfg    RateLimitConfig
	reason string // connection_rejected_total label

	mu      sync.Mutex
	buckets map[string]*ipBucket

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates the limiter applied to every route
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	return newIPRateLimiter(cfg, "rate_limit")
}

// NewRestartRateLimiter creates the stricter limiter in front of race restarts
func NewRestartRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	return newIPRateLimiter(cfg, "restart_limit")
}

func newIPRateLimiter(cfg RateLimitConfig, reason string) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		cfg:     cfg,
		reason:  reason,
		buckets: make(map[string]*ipBucket),
		stop:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow spends one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Stats returns counters since the limiter was created
func (rl *IPRateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	clients := len(rl.buckets)
	rl.mu.Unlock()
	return LimiterStats{
		Allowed:  rl.allowed.Load(),
		Rejected: rl.rejected.Load(),
		Clients:  clients,
	}
}

// Middleware answers 429 once the caller's bucket is empty
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected(rl.reason)
			w.Header().Set("Retry-After", rl.retryAfter())
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole seconds until one token is back
func (rl *IPRateLimiter) retryAfter() string {
	if rl.cfg.RequestsPerSecond >= 1 || rl.cfg.RequestsPerSecond <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / rl.cfg.RequestsPerSecond)))
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

// sweep drops buckets idle for two cleanup intervals
func (rl *IPRateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-2 * rl.cfg.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, ip)
		}
	}
}

// GetClientIP returns the first forwarded address when it parses as an IP,
// otherwise the connection's own address.
// CAUTION: forwarded headers can be spoofed unless a trusted proxy sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// spectatorSlots caps concurrent websocket connections per IP
type spectatorSlots struct {
	mu   sync.Mutex
	held map[string]int
	max  int
}

func newSpectatorSlots(maxPerIP int) *spectatorSlots {
	return &spectatorSlots{held: make(map[string]int), max: maxPerIP}
}

// acquire reserves a slot for ip, false when ip already holds max
func (s *spectatorSlots) acquire(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[ip] >= s.max {
		return false
	}
	s.held[ip]++
	return true
}

// release frees one slot; an IP with none left is forgotten
func (s *spectatorSlots) release(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch n := s.held[ip]; {
	case n > 1:
		s.held[ip] = n - 1
	case n == 1:
		delete(s.held, ip)
	}
}

// IsAllowedOrigin checks if an origin may open a WebSocket. Localhost on any
// port is always accepted, anything else must appear in allowed. An empty
// origin comes from a non-browser client and is allowed.
func IsAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}

	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}

	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	return false
}
