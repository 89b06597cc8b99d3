package resilience

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps backoff short enough for tests.
func fastConfig(registry *Registry) ClientConfig {
	return ClientConfig{
		Name:            "osrm",
		Timeout:         time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Registry:        registry,
		Logger:          zerolog.Nop(),
	}
}

// osrmServer answers with the statuses in order, repeating the last one.
func osrmServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(hits.Add(1))
		status := statuses[min(n, len(statuses))-1]
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func get(t *testing.T, c *Client, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url+"/route/v1/foot/4.9,52.37;4.89,52.36", http.NoBody)
	require.NoError(t, err)
	return c.Do(req)
}

func TestClient_Success(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusOK)
	registry := NewRegistry()
	c := NewClient(fastConfig(registry))

	resp, err := get(t, c, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"Ok"`)
	assert.Equal(t, int32(1), hits.Load())

	h, ok := registry.Health("osrm")
	require.True(t, ok)
	assert.False(t, h.LastSuccessAt.IsZero())
	assert.True(t, h.LastFailureAt.IsZero())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK)
	c := NewClient(fastConfig(nil))

	resp, err := get(t, c, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_ExhaustedRetriesReturnLastResponse(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusInternalServerError)
	registry := NewRegistry()
	c := NewClient(fastConfig(registry))

	resp, err := get(t, c, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load())

	h, _ := registry.Health("osrm")
	assert.False(t, h.LastFailureAt.IsZero())
	assert.Contains(t, h.LastError, "Internal Server Error")
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusBadRequest)
	c := NewClient(fastConfig(nil))

	resp, err := get(t, c, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_CircuitOpens(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusInternalServerError)
	registry := NewRegistry()
	cfg := fastConfig(registry)
	cfg.MaxRetries = 0
	cfg.Breaker = BreakerConfig{MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute}
	c := NewClient(cfg)

	for i := 0; i < 2; i++ {
		resp, err := get(t, c, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	_, err := get(t, c, srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open circuit must not reach the provider")
	assert.Equal(t, StatusDown, registry.Status())
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig(nil)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	c := NewClient(cfg)

	resp, err := get(t, c, srv.URL)
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestClient_CanceledContext(t *testing.T) {
	srv, _ := osrmServer(t, http.StatusOK)
	c := NewClient(fastConfig(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	_, err = c.Do(req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_ReplaysBody(t *testing.T) {
	var bodies []string
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(fastConfig(nil))
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, strings.NewReader(`{"waypoints":2}`))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{`{"waypoints":2}`, `{"waypoints":2}`}, bodies)
}

func TestClient_UnreplayableBodyAttemptedOnce(t *testing.T) {
	srv, hits := osrmServer(t, http.StatusBadGateway)
	c := NewClient(fastConfig(nil))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	req.GetBody = nil

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{Name: "osrm", Logger: zerolog.Nop()})

	assert.Equal(t, "osrm", c.Name())
	assert.Equal(t, 10*time.Second, c.cfg.Timeout)
	assert.Equal(t, 100*time.Millisecond, c.cfg.InitialInterval)
	assert.Equal(t, 5*time.Second, c.cfg.MaxInterval)
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestBreakerConfig_ShouldTrip(t *testing.T) {
	cfg := DefaultBreakerConfig()
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"no requests", gobreaker.Counts{}, false},
		{"below minimum", gobreaker.Counts{Requests: 4, TotalFailures: 4}, false},
		{"half failing", gobreaker.Counts{Requests: 6, TotalFailures: 3}, true},
		{"mostly healthy", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"all failing", gobreaker.Counts{Requests: 5, TotalFailures: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ShouldTrip(tt.counts))
		})
	}
}

func TestBreakerConfig_WithDefaults(t *testing.T) {
	got := BreakerConfig{FailureRatio: 1.5, MinRequests: 10}.withDefaults()

	assert.Equal(t, uint32(10), got.MinRequests)
	assert.InDelta(t, 0.5, got.FailureRatio, 1e-9)
	assert.Equal(t, time.Minute, got.OpenTimeout)
	assert.Equal(t, uint32(1), got.HalfOpenProbes)
}

func TestClientConfigFromEnv(t *testing.T) {
	t.Setenv("OSRM_TIMEOUT", "3s")
	t.Setenv("OSRM_MAX_RETRIES", "0")
	t.Setenv("OSRM_BREAKER_MIN_REQUESTS", "20")
	t.Setenv("OSRM_BREAKER_FAILURE_RATIO", "0.25")
	t.Setenv("OSRM_BREAKER_OPEN_TIMEOUT", "30s")

	cfg := ClientConfigFromEnv("osrm", "osrm")

	assert.Equal(t, "osrm", cfg.Name)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(0), cfg.MaxRetries)
	assert.Equal(t, uint32(20), cfg.Breaker.MinRequests)
	assert.InDelta(t, 0.25, cfg.Breaker.FailureRatio, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialInterval)
}

func TestServerError(t *testing.T) {
	err := &ServerError{StatusCode: http.StatusGatewayTimeout}
	assert.Equal(t, "provider returned Gateway Timeout", err.Error())
}
