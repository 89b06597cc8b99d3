// Package resilience guards outbound provider calls with a circuit breaker
// and bounded exponential retries, and tracks per-provider health for the
// ops endpoints.
package resilience

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls when a provider's circuit opens and how it recovers.
type BreakerConfig struct {
	// MinRequests is the number of requests in the current window before the
	// failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the circuit opens.
	FailureRatio float64
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenProbes is the number of requests let through while half-open.
	HalfOpenProbes uint32
	// ResetInterval clears the counts while closed. Zero never clears them.
	ResetInterval time.Duration
}

// DefaultBreakerConfig opens after 5 requests with at least half failing and
// probes again after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MinRequests:    5,
		FailureRatio:   0.5,
		OpenTimeout:    time.Minute,
		HalfOpenProbes: 1,
	}
}

// withDefaults fills unset fields from DefaultBreakerConfig.
func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.MinRequests == 0 {
		c.MinRequests = def.MinRequests
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = def.FailureRatio
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = def.HalfOpenProbes
	}
	return c
}

// ShouldTrip reports whether counts warrant opening the circuit.
func (c BreakerConfig) ShouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

type stateChangeFunc func(name string, from, to gobreaker.State)

func newBreaker(name string, cfg BreakerConfig, onChange stateChangeFunc) *gobreaker.CircuitBreaker[*http.Response] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenProbes,
		Interval:      cfg.ResetInterval,
		Timeout:       cfg.OpenTimeout,
		ReadyToTrip:   cfg.ShouldTrip,
		OnStateChange: onChange,
	})
}
