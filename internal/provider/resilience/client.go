package resilience

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/hexfog/hexfog/internal/config"
)

var (
	// ErrCircuitOpen is returned without contacting the provider while its
	// circuit is open or its half-open probe budget is used up.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// drainLimit bounds how much of a discarded body is read so the connection
// can be reused.
const drainLimit = 64 << 10

// ClientConfig configures a provider client.
type ClientConfig struct {
	// Name identifies the provider in logs and in the registry.
	Name string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// InitialInterval and MaxInterval bound the exponential backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Breaker controls the circuit. The zero value uses DefaultBreakerConfig.
	Breaker BreakerConfig
	// Registry, when set, receives the client on creation and the outcome
	// of every request.
	Registry *Registry
	Logger   zerolog.Logger
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultClientConfig returns a 10s timeout with 3 retries backing off from
// 100ms up to 5s.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         DefaultBreakerConfig(),
	}
}

// ClientConfigFromEnv starts from DefaultClientConfig and applies
// <PREFIX>_TIMEOUT, <PREFIX>_MAX_RETRIES, <PREFIX>_BREAKER_MIN_REQUESTS,
// <PREFIX>_BREAKER_FAILURE_RATIO and <PREFIX>_BREAKER_OPEN_TIMEOUT.
func ClientConfigFromEnv(name, prefix string) ClientConfig {
	cfg := DefaultClientConfig(name)
	prefix = strings.ToUpper(prefix) + "_"

	cfg.Timeout = config.Duration(prefix+"TIMEOUT", cfg.Timeout)
	if n := config.Int(prefix+"MAX_RETRIES", int(cfg.MaxRetries)); n >= 0 {
		cfg.MaxRetries = uint64(n)
	}
	if n := config.Int(prefix+"BREAKER_MIN_REQUESTS", int(cfg.Breaker.MinRequests)); n > 0 {
		cfg.Breaker.MinRequests = uint32(n)
	}
	cfg.Breaker.FailureRatio = config.Float(prefix+"BREAKER_FAILURE_RATIO", cfg.Breaker.FailureRatio)
	cfg.Breaker.OpenTimeout = config.Duration(prefix+"BREAKER_OPEN_TIMEOUT", cfg.Breaker.OpenTimeout)
	return cfg
}

// Client is an http.Client wrapper that retries transient failures and stops
// calling a provider that keeps failing.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	cfg        ClientConfig
	log        zerolog.Logger
}

// NewClient creates a client. Zero durations take their defaults; MaxRetries
// is used as given, so zero disables retries.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = max(def.MaxInterval, cfg.InitialInterval)
	}

	log := cfg.Logger.With().Str("provider", cfg.Name).Logger()
	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		cfg:        cfg,
		log:        log,
	}
	c.breaker = newBreaker(cfg.Name, cfg.Breaker, func(_ string, from, to gobreaker.State) {
		log.Warn().
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	})

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do sends req through the circuit breaker. Network errors and 5xx responses
// are retried with exponential backoff while the request context allows.
// When retries run out on a 5xx the final response is returned with a nil
// error so the caller can map the status itself. Requests whose body cannot
// be replayed are attempted once.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	retries := c.cfg.MaxRetries
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		retries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx)

	var last *http.Response
	attempt := 0
	op := func() error {
		attempt++
		if last != nil {
			discard(last)
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to the caller
			out, err := c.send(req, attempt)
			if err != nil {
				return nil, err
			}
			if out.StatusCode >= http.StatusInternalServerError {
				return out, &ServerError{StatusCode: out.StatusCode}
			}
			return out, nil
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case err != nil:
			last = resp
			return err
		}
		last = resp
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("retrying provider request")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		c.record(err)
		var serverErr *ServerError
		if last != nil && errors.As(err, &serverErr) {
			return last, nil
		}
		if last != nil {
			discard(last)
		}
		return nil, err
	}

	c.record(nil)
	return last, nil
}

// send performs a single attempt, rewinding the body after the first one.
func (c *Client) send(req *http.Request, attempt int) (*http.Response, error) {
	out := req.Clone(req.Context())
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		out.Body = body
	}
	return c.httpClient.Do(out)
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.name)
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

// ServerError is a 5xx response from the provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "provider returned " + http.StatusText(e.StatusCode)
}

// State returns the current circuit state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the circuit's request counts for the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
