package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexfog/hexfog/internal/api/middleware"
)

// limitedHandler wraps an OK handler with limiter and returns a function
// that sends one request from addr.
func limitedHandler(limiter func(http.Handler) http.Handler) func(addr string) *httptest.ResponseRecorder {
	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/routes:score", http.NoBody)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	send := limitedHandler(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 3, WindowLength: time.Minute}))

	for i := 0; i < 3; i++ {
		rec := send("10.0.0.1:12345")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := send("10.0.0.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Contains(t, rec.Body.String(), `"instance":"/v1/routes:score"`)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_SeparateBudgetPerIP(t *testing.T) {
	send := limitedHandler(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}))

	assert.Equal(t, http.StatusOK, send("172.16.0.1:12345").Code)
	assert.Equal(t, http.StatusOK, send("172.16.0.1:23456").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("172.16.0.1:34567").Code, "port must not split the budget")
	assert.Equal(t, http.StatusOK, send("172.16.0.2:12345").Code)
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}

	send := limitedHandler(middleware.RateLimitByUser(cfg))

	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345").Code)
	assert.Equal(t, http.StatusOK, send("192.168.1.1:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.1:12345").Code)
	assert.Equal(t, http.StatusOK, send("192.168.1.2:12345").Code)
}

func TestRateLimitByUser_LimitsPerUserAcrossIPs(t *testing.T) {
	jwtService := createTestAuthService(t)
	cfg := middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}

	handler := middleware.Auth(jwtService)(
		middleware.RateLimitByUser(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	send := func(userID, ip string) int {
		token, _, err := jwtService.GenerateAccessToken(userID, false)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/me/tracks", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+token)
		req.RemoteAddr = ip
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// A user moving between networks shares one budget.
	assert.Equal(t, http.StatusOK, send("usr_walker", "10.1.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("usr_walker", "10.2.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("usr_walker", "10.3.0.1:1000"))

	// Another user on the same network is unaffected.
	assert.Equal(t, http.StatusOK, send("usr_cyclist", "10.3.0.1:1000"))
}

func TestRateLimitExceeded_EchoesRequestID(t *testing.T) {
	send := limitedHandler(func(next http.Handler) http.Handler {
		return middleware.RequestID(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: time.Minute})(next))
	})

	send("203.0.113.1:12345")
	rec := send("203.0.113.1:12345")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too-many-requests")
	id := rec.Header().Get(middleware.RequestIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, rec.Body.String(), `"traceId":"`+id+`"`)
}

func TestRateLimit_RetryAfterMatchesWindow(t *testing.T) {
	send := limitedHandler(middleware.RateLimitByIP(middleware.RateLimitConfig{RequestLimit: 1, WindowLength: 90 * time.Second}))

	send("198.51.100.7:4000")
	rec := send("198.51.100.7:4000")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
}

func TestDefaultRateLimits(t *testing.T) {
	limits := middleware.DefaultRateLimits()

	assert.Equal(t, 10, limits.Auth.RequestLimit)
	assert.Equal(t, 30, limits.Expensive.RequestLimit)
	assert.Equal(t, 100, limits.Standard.RequestLimit)
	assert.Equal(t, 300, limits.Ingest.RequestLimit)
	for _, l := range []middleware.RateLimitConfig{limits.Auth, limits.Expensive, limits.Standard, limits.Ingest} {
		assert.Equal(t, time.Minute, l.WindowLength)
	}
}

func TestRateLimitsFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_INGEST", "600")
	t.Setenv("RATE_LIMIT_AUTH", "not-a-number")

	limits := middleware.RateLimitsFromEnv()

	assert.Equal(t, 600, limits.Ingest.RequestLimit)
	assert.Equal(t, middleware.AuthRateLimit, limits.Auth)
	assert.Equal(t, middleware.StandardRateLimit, limits.Standard)
}
