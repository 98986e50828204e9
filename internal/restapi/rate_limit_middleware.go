package restapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"heatmap.tricitytransit.org/internal/app"
	"heatmap.tricitytransit.org/internal/clock"
	"heatmap.tricitytransit.org/internal/models"
)

const (
	// anonymousKey is the bucket shared by requests without an API key.
	anonymousKey = "__no_key__"
	// idleLimiterTTL is how long an unused bucket is kept.
	idleLimiterTTL = 10 * time.Minute
	evictEvery     = 5 * time.Minute
)

type keyBucket struct {
	limiter *rate.Limiter
	touched time.Time
}

// RateLimitMiddleware throttles requests per API key with a token bucket.
type RateLimitMiddleware struct {
	mu       sync.RWMutex
	limiters map[string]*keyBucket

	limit  rate.Limit
	burst  int
	exempt map[string]struct{}
	clock  clock.Clock

	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimitMiddleware allows each API key ratePerInterval requests per
// interval, with bursts of the same size. Zero blocks every request and a
// negative rate disables limiting.
func NewRateLimitMiddleware(ratePerInterval int, interval time.Duration, exemptKeys []string, clk clock.Clock) *RateLimitMiddleware {
	limit := rate.Inf
	if ratePerInterval == 0 {
		limit = 0
	} else if ratePerInterval > 0 {
		limit = rate.Every(interval / time.Duration(ratePerInterval))
	}

	exempt := make(map[string]struct{}, len(exemptKeys))
	for _, k := range exemptKeys {
		if k = strings.TrimSpace(k); k != "" {
			exempt[k] = struct{}{}
		}
	}

	rl := &RateLimitMiddleware{
		limiters: make(map[string]*keyBucket),
		limit:    limit,
		burst:    max(ratePerInterval, 0),
		exempt:   exempt,
		clock:    clk,
		done:     make(chan struct{}),
	}
	go rl.evictLoop(time.NewTicker(evictEvery))
	return rl
}

func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := app.RequestAPIKey(r)
			if key == "" {
				key = anonymousKey
			}
			if _, ok := rl.exempt[key]; ok || rl.getLimiter(key).Allow() {
				next.ServeHTTP(w, r)
				return
			}
			rl.reject(w, r)
		})
	}
}

// getLimiter returns the bucket for key, creating it on first use, and marks
// it as recently used.
func (rl *RateLimitMiddleware) getLimiter(key string) *rate.Limiter {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.limiters[key]
	if !ok {
		b = &keyBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = b
	}
	b.touched = now
	return b.limiter
}

// retryAfter is the wait until one more token is available, in whole seconds.
func (rl *RateLimitMiddleware) retryAfter() int {
	if rl.limit == 0 {
		return int(time.Hour / time.Second)
	}
	if rl.limit == rate.Inf {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(rl.limit))))
}

func (rl *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Retry-After", strconv.Itoa(rl.retryAfter()))
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	h.Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	body := models.NewErrorResponse(http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.", rl.clock)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode rate limit response", "error", err, "path", r.URL.Path)
	}
}

// cleanupOnce drops buckets unused for longer than idleLimiterTTL.
func (rl *RateLimitMiddleware) cleanupOnce() {
	cutoff := rl.clock.Now().Add(-idleLimiterTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.limiters {
		if b.touched.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimitMiddleware) evictLoop(t *time.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-t.C:
			rl.cleanupOnce()
		case <-rl.done:
			return
		}
	}
}

// Stop ends background eviction. Calling it again is a no-op.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}
