package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/config"
)

// RateLimitConfig is a fixed request budget per window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Default budgets, all per minute.
var (
	// AuthRateLimit guards token issuance (10/min per IP).
	AuthRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}

	// ExpensiveRateLimit guards fog-zone search and route compute (30/min).
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// StandardRateLimit applies to everything else (100/min).
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}

	// IngestRateLimit allows clients to upload tracks in small batches while
	// moving (300/min per user).
	IngestRateLimit = RateLimitConfig{RequestLimit: 300, WindowLength: time.Minute}
)

// RateLimits groups the budgets the router applies.
type RateLimits struct {
	Auth      RateLimitConfig
	Expensive RateLimitConfig
	Standard  RateLimitConfig
	Ingest    RateLimitConfig
}

// DefaultRateLimits returns the default budgets.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Auth:      AuthRateLimit,
		Expensive: ExpensiveRateLimit,
		Standard:  StandardRateLimit,
		Ingest:    IngestRateLimit,
	}
}

// RateLimitsFromEnv reads per-minute budgets from RATE_LIMIT_AUTH,
// RATE_LIMIT_EXPENSIVE, RATE_LIMIT_STANDARD and RATE_LIMIT_INGEST.
func RateLimitsFromEnv() RateLimits {
	perMinute := func(key string, def RateLimitConfig) RateLimitConfig {
		return RateLimitConfig{RequestLimit: config.Int(key, def.RequestLimit), WindowLength: def.WindowLength}
	}
	return RateLimits{
		Auth:      perMinute("RATE_LIMIT_AUTH", AuthRateLimit),
		Expensive: perMinute("RATE_LIMIT_EXPENSIVE", ExpensiveRateLimit),
		Standard:  perMinute("RATE_LIMIT_STANDARD", StandardRateLimit),
		Ingest:    perMinute("RATE_LIMIT_INGEST", IngestRateLimit),
	}
}

// RateLimitByIP limits by client IP (as resolved by chi's RealIP).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

// RateLimitByUser limits by authenticated user, falling back to client IP.
// It must run after Auth to see the user.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(rateLimitExceeded(cfg.WindowLength)),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceeded writes a 429 problem. httprate does not expose the
// reset time, so Retry-After advertises a full window.
func rateLimitExceeded(window time.Duration) http.HandlerFunc {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))

	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
