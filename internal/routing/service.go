package routing

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hexfog/hexfog/pkg/polyline"
)

// CellCounter counts the unexplored cells a path would clear.
type CellCounter interface {
	NewCellsAlong(ctx context.Context, userID, regionID string, path orb.LineString) (int, error)
}

// MetricsRecorder records provider call and cache metrics.
type MetricsRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

const opDirections = "directions"

// ServiceConfig holds configuration for the routing service.
type ServiceConfig struct {
	Provider Provider
	// Cells optionally annotates scored routes with new-cell counts.
	Cells   CellCounter
	Flow    FlowConfig
	Logger  zerolog.Logger
	Metrics MetricsRecorder

	// CacheTTL is how long a response is served without asking the provider
	// (default 5m).
	CacheTTL time.Duration
	// StaleIfErrorTTL is how long a response may still be served when the
	// provider fails (default 15m).
	StaleIfErrorTTL time.Duration
	// CacheGridSize snaps waypoints to a grid of this many degrees before
	// keying the cache (default 0.001, about 110m).
	CacheGridSize float64
	// CleanupInterval bounds how often expired entries are swept (default 5m).
	CleanupInterval time.Duration
}

// Service fetches directions through a cache and scores the returned routes.
type Service struct {
	provider Provider
	cells    CellCounter
	scorer   *FlowScorer
	log      zerolog.Logger
	metrics  MetricsRecorder
	cache    *directionsCache
	flight   singleflight.Group
}

// NewService creates a routing service. Zero durations and grid size take
// their defaults.
func NewService(cfg ServiceConfig) *Service {
	ttl := orDefault(cfg.CacheTTL, 5*time.Minute)
	stale := orDefault(cfg.StaleIfErrorTTL, 15*time.Minute)
	sweep := orDefault(cfg.CleanupInterval, 5*time.Minute)
	grid := cfg.CacheGridSize
	if grid <= 0 {
		grid = 0.001
	}

	return &Service{
		provider: cfg.Provider,
		cells:    cfg.Cells,
		scorer:   NewFlowScorer(cfg.Flow),
		log:      cfg.Logger.With().Str("provider", cfg.Provider.Name()).Logger(),
		metrics:  cfg.Metrics,
		cache:    newDirectionsCache(ttl, stale, sweep, grid),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetDirections returns routes through the requested waypoints. Fresh cached
// responses are returned without contacting the provider, and concurrent
// misses for the same key share one provider call. When the provider fails,
// a cached response within the stale window is served instead of the error.
func (s *Service) GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	key := s.cache.key(req)
	if resp, ok := s.cache.fresh(key); ok {
		s.log.Debug().Str("cache_key", key).Msg("directions cache hit")
		s.recordCache(true)
		return resp, nil
	}
	s.recordCache(false)

	// The shared call must not die with whichever caller happened to start it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.fetch(fetchCtx, req, key)
	})
	if shared {
		s.log.Debug().Str("cache_key", key).Msg("joined in-flight directions request")
	}
	if err != nil {
		return nil, err
	}
	return v.(*DirectionsResponse), nil
}

func (s *Service) fetch(ctx context.Context, req DirectionsRequest, key string) (*DirectionsResponse, error) {
	if resp, ok := s.cache.fresh(key); ok {
		return resp, nil
	}

	start := time.Now()
	resp, err := s.provider.GetDirections(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordRequest(s.provider.Name(), opDirections, time.Since(start), err)
	}
	if err != nil {
		if cached, fetchedAt, ok := s.cache.stale(key); ok {
			s.log.Warn().Err(err).
				Time("fetched_at", fetchedAt).
				Str("cache_key", key).
				Msg("serving stale directions after provider error")
			return cached, nil
		}
		s.log.Error().Err(err).
			Int("waypoints", len(req.Waypoints)).
			Str("profile", string(req.Profile)).
			Msg("failed to fetch directions")
		return nil, err
	}

	if dropped := s.cache.put(key, resp); dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("swept expired directions cache entries")
	}
	s.log.Debug().
		Str("cache_key", key).
		Int("routes", len(resp.Routes)).
		Dur("latency", time.Since(start)).
		Msg("fetched directions")
	return resp, nil
}

func (s *Service) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(s.provider.Name(), opDirections)
		return
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), opDirections)
}

func (s *Service) validate(req DirectionsRequest) error {
	invalid := func(code, msg string, err error) error {
		return &Error{Provider: s.provider.Name(), Code: code, Message: msg, Err: err}
	}

	if len(req.Waypoints) < 2 {
		return invalid("TOO_FEW_WAYPOINTS", "at least two waypoints are required", ErrInvalidCoordinates)
	}
	for i, p := range req.Waypoints {
		if !validPoint(p) {
			return invalid("INVALID_WAYPOINT", fmt.Sprintf("invalid coordinates for waypoint %d", i), ErrInvalidCoordinates)
		}
	}
	if req.Profile != "" && !slices.Contains(s.provider.SupportedProfiles(), req.Profile) {
		return invalid("UNSUPPORTED_PROFILE", fmt.Sprintf("profile %q is not supported", req.Profile), ErrUnsupportedProfile)
	}
	return nil
}

// validPoint reports whether p is a finite WGS84 lon/lat pair.
func validPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	return !math.IsNaN(lat) && !math.IsNaN(lon) &&
		lat >= -90 && lat <= 90 &&
		lon >= -180 && lon <= 180
}

// ScoreRequest asks for routes scored by flow and, optionally, exploration value.
type ScoreRequest struct {
	Directions DirectionsRequest
	// UserID and RegionID enable new-cell counts when both are set.
	UserID   string
	RegionID string
}

// ScoreResponse holds scored route alternatives in provider order.
type ScoreResponse struct {
	Routes    []ScoredRoute `json:"routes"`
	Provider  string        `json:"provider"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// ScoreRoutes fetches route alternatives and scores each one. New-cell
// counts run concurrently; any counting failure fails the whole call.
func (s *Service) ScoreRoutes(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	resp, err := s.GetDirections(ctx, req.Directions)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredRoute, len(resp.Routes))
	countCells := s.cells != nil && req.UserID != "" && req.RegionID != ""

	g, gctx := errgroup.WithContext(ctx)
	for i, route := range resp.Routes {
		scored[i] = ScoredRoute{
			Route: route,
			Flow:  s.scorer.Score(route.Steps(), route.DistanceMeters),
		}
		if !countCells {
			continue
		}

		g.Go(func() error {
			path, err := polyline.Decode(route.GeometryPolyline)
			if err != nil {
				return fmt.Errorf("decoding route %d geometry: %w", i, err)
			}
			n, err := s.cells.NewCellsAlong(gctx, req.UserID, req.RegionID, path)
			if err != nil {
				return fmt.Errorf("counting new cells for route %d: %w", i, err)
			}
			scored[i].NewCells = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ScoreResponse{Routes: scored, Provider: resp.Provider, FetchedAt: resp.FetchedAt}, nil
}

// ScoreSteps scores an already-fetched step sequence.
func (s *Service) ScoreSteps(steps []RouteStep, totalDistanceMeters float64) FlowScore {
	return s.scorer.Score(steps, totalDistanceMeters)
}
