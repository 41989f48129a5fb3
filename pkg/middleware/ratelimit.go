package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per key and evicts idle ones.
type limiterStore struct {
	mu       sync.Mutex
	visitors map[string]*visitorLimiter
	rps      float64
	burst    int
	ttl      time.Duration
	nowFunc  func() time.Time
}

func newLimiterStore(rps float64, burst int, ttl time.Duration) *limiterStore {
	return &limiterStore{
		visitors: make(map[string]*visitorLimiter),
		rps:      rps,
		burst:    burst,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitorLimiter{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *limiterStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, key)
		}
	}
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimiter enforces a token bucket per caller.
type RateLimiter struct {
	store  *limiterStore
	logger *slog.Logger
	stop   chan struct{}
	once   sync.Once
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst, and starts its eviction loop. Call Stop on shutdown.
func NewRateLimiter(rps float64, burst int, l *slog.Logger) *RateLimiter {
	const idleTTL = 3 * time.Minute
	rl := &RateLimiter{
		store:  newLimiterStore(rps, burst, idleTTL),
		logger: l,
		stop:   make(chan struct{}),
	}
	go rl.cleanupLoop(idleTTL)
	return rl
}

func (rl *RateLimiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.store.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the eviction loop.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Handler answers 429 once the caller's bucket is empty. Authenticated
// requests are keyed by user ID, anonymous ones by client IP. Client
// supplied headers such as X-Visitor-ID never select the bucket.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIP(r)
		if id := UserIDFromContext(r.Context()); id != "" {
			key = "user:" + id
		}

		if !rl.store.get(key).Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
