// Package osrm provides a client for the OSRM route service (/route/v1).
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/hexfog/hexfog/internal/provider/resilience"
	"github.com/hexfog/hexfog/internal/routing"
)

const (
	// ProviderName identifies this routing provider.
	ProviderName = "osrm"

	// DefaultBaseURL is the public OSRM demo server.
	DefaultBaseURL = "https://router.project-osrm.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OSRM client.
type ClientConfig struct {
	// BaseURL is the server base URL (optional, defaults to the demo server).
	BaseURL string

	// DefaultProfile is used when a request has no profile (default: foot).
	DefaultProfile routing.RouteProfile

	// Profiles lists the profiles the server was built with (default: foot, bike, driving).
	Profiles []routing.RouteProfile

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Resilience tunes retries and the circuit breaker of the default HTTP
	// client. The zero value uses resilience.DefaultClientConfig.
	Resilience resilience.ClientConfig

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OSRM API client.
type Client struct {
	baseURL        string
	defaultProfile routing.RouteProfile
	profiles       []routing.RouteProfile
	httpClient     HTTPDoer
	logger         zerolog.Logger
}

// NewClient creates a new OSRM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	profile := cfg.DefaultProfile
	if profile == "" {
		profile = routing.ProfileWalk
	}

	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = []routing.RouteProfile{routing.ProfileWalk, routing.ProfileBike, routing.ProfileDrive}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := cfg.Resilience
		if clientCfg.MaxRetries == 0 && clientCfg.Breaker == (resilience.BreakerConfig{}) {
			clientCfg = resilience.DefaultClientConfig(ProviderName)
		}
		clientCfg.Name = ProviderName
		if cfg.Timeout > 0 || clientCfg.Timeout <= 0 {
			clientCfg.Timeout = timeout
		}
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:        baseURL,
		defaultProfile: profile,
		profiles:       profiles,
		httpClient:     httpClient,
		logger:         cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported routing profiles.
func (c *Client) SupportedProfiles() []routing.RouteProfile {
	return c.profiles
}

// GetDirections retrieves routes through the requested waypoints with
// turn-by-turn steps.
func (c *Client) GetDirections(ctx context.Context, req routing.DirectionsRequest) (*routing.DirectionsResponse, error) {
	if len(req.Waypoints) < 2 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "TOO_FEW_WAYPOINTS",
			Message:  "at least two waypoints are required",
			Err:      routing.ErrInvalidCoordinates,
		}
	}
	for i, p := range req.Waypoints {
		if err := validateCoordinates(p); err != nil {
			return nil, &routing.Error{
				Provider: ProviderName,
				Code:     "INVALID_WAYPOINT",
				Message:  fmt.Sprintf("invalid coordinates for waypoint %d", i),
				Err:      routing.ErrInvalidCoordinates,
			}
		}
	}

	profile := req.Profile
	if profile == "" {
		profile = c.defaultProfile
	}
	if !slices.Contains(c.profiles, profile) {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "UNSUPPORTED_PROFILE",
			Message:  fmt.Sprintf("profile %q is not served", profile),
			Err:      routing.ErrUnsupportedProfile,
		}
	}

	endpoint := c.routeURL(profile, req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", string(profile)).
		Int("waypoints", len(req.Waypoints)).
		Msg("requesting route from OSRM")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach routing provider",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var osrmResp routeResponse
	decodeErr := json.Unmarshal(body, &osrmResp)

	if resp.StatusCode != http.StatusOK || (decodeErr == nil && osrmResp.Code != codeOK) {
		return nil, c.handleErrorResponse(resp.StatusCode, osrmResp, decodeErr)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}
	if len(osrmResp.Routes) == 0 {
		return nil, &routing.Error{
			Provider: ProviderName,
			Code:     codeNoRoute,
			Message:  "provider returned no routes",
			Err:      routing.ErrNoRouteFound,
		}
	}

	result := toDirectionsResponse(&osrmResp)

	c.logger.Debug().
		Int("route_count", len(result.Routes)).
		Msg("received routes from OSRM")

	return result, nil
}

// routeURL builds {base}/route/v1/{profile}/{lon,lat;...}?steps=true&...
func (c *Client) routeURL(profile routing.RouteProfile, req routing.DirectionsRequest) string {
	coords := make([]string, len(req.Waypoints))
	for i, p := range req.Waypoints {
		coords[i] = strconv.FormatFloat(p.Lon(), 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat(), 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "polyline")
	q.Set("steps", "true")
	if req.MaxAlternatives > 0 && len(req.Waypoints) == 2 {
		// Alternatives are only computed for two-waypoint requests.
		q.Set("alternatives", strconv.Itoa(req.MaxAlternatives))
	} else {
		q.Set("alternatives", "false")
	}

	return fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, profile, strings.Join(coords, ";"), q.Encode())
}

// handleErrorResponse maps OSRM error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, resp routeResponse, decodeErr error) error {
	if statusCode == http.StatusTooManyRequests {
		return &routing.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      routing.ErrRateLimitExceeded,
		}
	}
	if statusCode >= 500 {
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "routing provider is temporarily unavailable",
			Err:      routing.ErrProviderUnavailable,
		}
	}
	if decodeErr != nil {
		// Fall back to generic error if we can't parse
		return &routing.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("routing provider returned status %d", statusCode),
			Err:      routing.ErrProviderUnavailable,
		}
	}

	switch resp.Code {
	case codeNoRoute, codeNoSegment:
		return &routing.Error{
			Provider: ProviderName,
			Code:     resp.Code,
			Message:  resp.Message,
			Err:      routing.ErrNoRouteFound,
		}
	case codeInvalidQuery, codeInvalidValue, codeInvalidOptions, codeInvalidURL, codeTooBig:
		return &routing.Error{
			Provider: ProviderName,
			Code:     resp.Code,
			Message:  resp.Message,
			Err:      routing.ErrInvalidCoordinates,
		}
	default:
		c.logger.Warn().Str("code", resp.Code).Int("status", statusCode).Msg("unexpected OSRM response code")
		return &routing.Error{
			Provider: ProviderName,
			Code:     resp.Code,
			Message:  resp.Message,
			Err:      routing.ErrProviderUnavailable,
		}
	}
}

// toDirectionsResponse converts an OSRM response to the domain model.
func toDirectionsResponse(resp *routeResponse) *routing.DirectionsResponse {
	routes := make([]routing.Route, 0, len(resp.Routes))

	for i := range resp.Routes {
		r := &resp.Routes[i]
		out := routing.Route{
			GeometryPolyline: r.Geometry,
			DistanceMeters:   r.Distance,
			DurationSeconds:  r.Duration,
			Legs:             make([]routing.Leg, 0, len(r.Legs)),
		}

		summaries := make([]string, 0, len(r.Legs))
		for j := range r.Legs {
			l := &r.Legs[j]
			leg := routing.Leg{
				Summary:         l.Summary,
				DistanceMeters:  l.Distance,
				DurationSeconds: l.Duration,
				Steps:           make([]routing.RouteStep, 0, len(l.Steps)),
			}
			for k := range l.Steps {
				s := &l.Steps[k]
				leg.Steps = append(leg.Steps, routing.RouteStep{
					Instruction:     instruction(s),
					DistanceMeters:  s.Distance,
					DurationSeconds: s.Duration,
					Maneuver: routing.Maneuver{
						Type:     s.Maneuver.Type,
						Modifier: s.Maneuver.Modifier,
						Location: orb.Point{s.Maneuver.Location[0], s.Maneuver.Location[1]},
					},
				})
			}
			if l.Summary != "" {
				summaries = append(summaries, l.Summary)
			}
			out.Legs = append(out.Legs, leg)
		}
		out.Summary = strings.Join(summaries, "; ")

		routes = append(routes, out)
	}

	return &routing.DirectionsResponse{
		Routes:    routes,
		Provider:  ProviderName,
		FetchedAt: time.Now(),
	}
}

// instruction renders a short English instruction; OSRM itself returns none.
func instruction(s *step) string {
	m := s.Maneuver
	name := s.Name
	if name == "" {
		name = s.Ref
	}

	var verb string
	switch m.Type {
	case routing.ManeuverDepart:
		verb = "Head"
		if name != "" {
			return verb + " along " + name
		}
		return verb + " out"
	case routing.ManeuverArrive:
		return "Arrive at your destination"
	case routing.ManeuverTurn:
		verb = "Turn"
	case routing.ManeuverEndOfRoad:
		verb = "At the end of the road turn"
	case routing.ManeuverNewName, routing.ManeuverContinue:
		verb = "Continue"
	case routing.ManeuverRoundabout, routing.ManeuverRotary:
		verb = "Enter the " + m.Type
		if m.Exit > 0 {
			verb += " and take exit " + strconv.Itoa(m.Exit)
		}
		if name != "" {
			return verb + " onto " + name
		}
		return verb
	case routing.ManeuverMerge:
		verb = "Merge"
	case routing.ManeuverFork:
		verb = "Keep"
	default:
		verb = strings.ToUpper(m.Type[:min(1, len(m.Type))]) + m.Type[min(1, len(m.Type)):]
	}

	if m.Modifier != "" {
		verb += " " + m.Modifier
	}
	if name != "" {
		verb += " onto " + name
	}
	return verb
}

// validateCoordinates checks if coordinates are within valid ranges.
func validateCoordinates(p orb.Point) error {
	if p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", p.Lat())
	}
	if p.Lon() < -180 || p.Lon() > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", p.Lon())
	}
	return nil
}
