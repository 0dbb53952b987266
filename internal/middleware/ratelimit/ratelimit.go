package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/cache"
)

const (
	maxTrackedClients = 10000
	staleAfter        = 10 * time.Minute
)

// Limiter is a fixed-window per-client request limiter. Client windows live
// in an LRU cache so idle clients age out without a dedicated goroutine.
type Limiter struct {
	mu      sync.Mutex
	clients *cache.LRUCache[*window]
	now     func() time.Time

	requests int
	window   time.Duration
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Window            time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 120, Window: time.Minute}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	return &Limiter{
		clients:  cache.NewLRUCache[*window](maxTrackedClients, staleAfter),
		now:      time.Now,
		requests: config.RequestsPerMinute,
		window:   config.Window,
	}
}

// WithClock replaces the time source.
func (rl *Limiter) WithClock(now func() time.Time) *Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
	rl.clients.WithClock(now)
	return rl
}

// Clients exposes the window cache so a cache.Manager can sweep it.
func (rl *Limiter) Clients() cache.Cleaner {
	return rl.clients
}

// Allow checks if a request from the given IP should be allowed
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients.Get(clientIP)
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients.Set(clientIP, &window{start: now, count: 1})
		return true
	}
	w.count++
	return w.count <= rl.requests
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	return rl.clients.Size()
}

// Middleware creates HTTP middleware for rate limiting
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
