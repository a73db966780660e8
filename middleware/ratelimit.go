package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/casualjim/aviary/internal/registry"
	"github.com/fogfish/opts"
	"golang.org/x/time/rate"
)

// Algorithm selects how the rate limiter counts requests.
type Algorithm string

const (
	// AlgorithmWindow admits a fixed number of requests per period, the
	// counter resetting when the period elapses.
	AlgorithmWindow Algorithm = "window"
	// AlgorithmToken refills a token bucket continuously, the bucket holding
	// at most one period worth of requests.
	AlgorithmToken Algorithm = "token"
)

// RateLimitConfig configures per-client rate limiting.
type RateLimitConfig struct {
	Enabled           bool      `mapstructure:"enabled"`
	RequestsPerPeriod int       `mapstructure:"requests_per_period"`
	PeriodSeconds     int       `mapstructure:"period_seconds"`
	Algorithm         Algorithm `mapstructure:"algorithm"`
	TrustForwardedFor bool      `mapstructure:"trust_forwarded_for"`
}

// Period returns the configured period as a duration.
func (c RateLimitConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

// RateLimitedBody is the response body sent to rejected requests.
const RateLimitedBody = "Too many requests. Please try again later."

// RateLimit builds the rate limiting stage. It reports false when rate
// limiting is disabled, or configured to admit nothing.
func RateLimit(cfg RateLimitConfig, options ...opts.Option[settings]) (Middleware, *Limiter, bool) {
	if !cfg.Enabled || cfg.RequestsPerPeriod <= 0 || cfg.PeriodSeconds <= 0 {
		return nil, nil, false
	}

	s := newSettings(options)
	limiter := NewLimiter(cfg, s.now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := limiter.Allow(limiter.Key(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			if s.onReject != nil {
				s.onReject(r)
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retry)))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(RateLimitedBody))
		})
	}, limiter, true
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type limiterEntry struct {
	mu     sync.Mutex
	start  time.Time
	count  int
	last   time.Time
	bucket *rate.Limiter
}

// Limiter tracks request counts per client key.
type Limiter struct {
	limit     int
	period    time.Duration
	algorithm Algorithm
	trustXFF  bool
	now       func() time.Time
	entries   registry.Registry[*limiterEntry]
}

// NewLimiter creates a limiter for cfg. A nil clock means time.Now.
func NewLimiter(cfg RateLimitConfig, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmWindow
	}
	return &Limiter{
		limit:     cfg.RequestsPerPeriod,
		period:    cfg.Period(),
		algorithm: algorithm,
		trustXFF:  cfg.TrustForwardedFor,
		now:       now,
		entries:   registry.New[*limiterEntry](),
	}
}

// Key returns the client key of a request: the first X-Forwarded-For entry
// when forwarded headers are trusted, the remote IP otherwise.
func (l *Limiter) Key(r *http.Request) string {
	if l.trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow records a request for key. When the request is over the limit it
// returns false and how long the client should wait.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	entry, _ := l.entries.GetOrAdd(key, func() *limiterEntry {
		e := &limiterEntry{start: now}
		if l.algorithm == AlgorithmToken {
			every := rate.Every(l.period / time.Duration(l.limit))
			e.bucket = rate.NewLimiter(every, l.limit)
		}
		return e
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.last = now

	if entry.bucket != nil {
		res := entry.bucket.ReserveN(now, 1)
		if !res.OK() {
			return false, l.period
		}
		if delay := res.DelayFrom(now); delay > 0 {
			res.CancelAt(now)
			return false, delay
		}
		return true, 0
	}

	if elapsed := now.Sub(entry.start); elapsed >= l.period || elapsed < 0 {
		entry.start = now
		entry.count = 0
	}
	if entry.count < l.limit {
		entry.count++
		return true, 0
	}
	return false, l.period - now.Sub(entry.start)
}

// Clients returns the number of client keys currently tracked.
func (l *Limiter) Clients() int {
	return l.entries.Len()
}

// Sweep forgets clients that have been idle for a full period, and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	var stale []string
	l.entries.Range(func(key string, e *limiterEntry) bool {
		e.mu.Lock()
		idle := now.Sub(e.last) >= l.period
		e.mu.Unlock()
		if idle {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		l.entries.Del(key)
	}
	return len(stale)
}

// Run sweeps idle clients every period until ctx is done.
func (l *Limiter) Run(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 && logger != nil {
				logger.Debug("swept idle rate limit clients", slog.Int("removed", n), slog.Int("remaining", l.Clients()))
			}
		}
	}
}

func (l *Limiter) String() string {
	return fmt.Sprintf("%s limiter: %d requests per %s", l.algorithm, l.limit, l.period)
}
