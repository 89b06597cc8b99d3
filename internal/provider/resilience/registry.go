package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status values summarising all registered providers.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// circuit is the read-only view of a breaker the registry needs.
type circuit interface {
	State() gobreaker.State
	Counts() gobreaker.Counts
}

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Status maps the circuit state onto StatusOK, StatusDegraded or StatusDown.
func (h ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return StatusDown
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusOK
	}
}

type entry struct {
	circuit       circuit
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// Registry tracks provider clients and the outcome of their last requests.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Register adds or replaces a provider. Replacing resets its history.
func (r *Registry) Register(name string, c circuit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{circuit: c}
}

// RecordSuccess notes a successful request. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.lastSuccessAt = r.now()
	}
}

// RecordFailure notes a failed request. Unknown names are ignored.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.lastFailureAt = r.now()
	if err != nil {
		e.lastError = err.Error()
	}
}

// Health returns one provider's health.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.health(name), true
}

// Snapshot returns every provider's health ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	out := make([]ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b ProviderHealth) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Status is StatusDown when any circuit is open, StatusDegraded when any is
// half-open and StatusOK otherwise, including for an empty registry.
func (r *Registry) Status() string {
	status := StatusOK
	for _, h := range r.Snapshot() {
		switch h.Status() {
		case StatusDown:
			return StatusDown
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (e *entry) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  e.circuit.State(),
		Counts:        e.circuit.Counts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
