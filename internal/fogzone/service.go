package fogzone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/grid"
)

const meterName = "github.com/hexfog/hexfog/internal/fogzone"

// Query asks for fog zones around a location.
type Query struct {
	UserID   string
	RegionID string
	Location orb.Point
	// MaxZones overrides the configured cap when positive.
	MaxZones int
}

// Result holds ranked zones plus the size of each pipeline stage.
type Result struct {
	Zones          []FogZone `json:"zones"`
	CandidateCells int       `json:"candidateCells"`
	NearbyCells    int       `json:"nearbyCells"`
	NoiseCells     int       `json:"noiseCells"`
}

// Service runs the gap provider, pre-filter, clusterer and ranker in sequence.
type Service struct {
	gaps    coverage.GapProvider
	mapper  *grid.Mapper
	cfg     Config
	logger  zerolog.Logger
	metrics *serviceMetrics
}

type serviceMetrics struct {
	candidates metric.Int64Histogram
	zones      metric.Int64Histogram
	duration   metric.Float64Histogram
}

func newServiceMetrics() (*serviceMetrics, error) {
	meter := otel.Meter(meterName)

	candidates, err := meter.Int64Histogram(
		"fogzone.candidates",
		metric.WithDescription("Uncleared cells considered per fog-zone search"),
		metric.WithUnit("{cell}"),
	)
	if err != nil {
		return nil, err
	}

	zones, err := meter.Int64Histogram(
		"fogzone.zones",
		metric.WithDescription("Fog zones returned per search"),
		metric.WithUnit("{zone}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"fogzone.pipeline.duration",
		metric.WithDescription("Duration of the fog-zone pipeline in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &serviceMetrics{candidates: candidates, zones: zones, duration: duration}, nil
}

// NewService creates a fog-zone service. Zero-valued config fields take their defaults.
func NewService(gaps coverage.GapProvider, mapper *grid.Mapper, cfg Config) *Service {
	if cfg.SearchRadiusSteps <= 0 {
		cfg.SearchRadiusSteps = DefaultSearchRadiusSteps
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = DefaultMinPoints
	}
	if cfg.MaxZones <= 0 {
		cfg.MaxZones = DefaultMaxZones
	}
	if cfg.CellAreaKm2 <= 0 {
		cfg.CellAreaKm2 = grid.DefaultCellAreaKm2
	}
	if mapper == nil {
		mapper = grid.NewMapper(grid.DefaultConfig())
	}

	m, err := newServiceMetrics()
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("fog-zone metrics disabled")
	}

	return &Service{
		gaps:    gaps,
		mapper:  mapper,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: m,
	}
}

// FindZones returns the densest nearby pockets of cells the user has not cleared.
// Gap provider failures are returned wrapped in coverage.ErrGapProvider.
func (s *Service) FindZones(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	center, err := s.mapper.CellOf(q.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	cells, err := s.gaps.UnclearedCells(ctx, q.UserID, q.RegionID)
	if err != nil {
		if !errors.Is(err, coverage.ErrGapProvider) {
			err = fmt.Errorf("%w: %w", coverage.ErrGapProvider, err)
		}
		return nil, err
	}

	result := &Result{Zones: []FogZone{}, CandidateCells: len(cells)}

	nearby := FilterNearby(cells, center, s.cfg.SearchRadiusSteps)
	result.NearbyCells = len(nearby)

	if len(nearby) >= s.cfg.MinPoints {
		points := make([]Point, 0, len(nearby))
		for _, c := range nearby {
			loc, err := s.mapper.CellCenter(c)
			if err != nil {
				continue
			}
			points = append(points, Point{Cell: c, Location: loc})
		}

		clustering := DBSCAN(points, s.cfg.MaxDistanceKm, s.cfg.MinPoints)
		result.NoiseCells = clustering.NoiseCount()

		maxZones := s.cfg.MaxZones
		if q.MaxZones > 0 {
			maxZones = q.MaxZones
		}
		result.Zones = Rank(clustering.Clusters, q.Location, maxZones, s.cfg.CellAreaKm2)
	}

	s.record(ctx, result, time.Since(start))

	s.logger.Debug().
		Str("user_id", q.UserID).
		Str("region_id", q.RegionID).
		Int("candidates", result.CandidateCells).
		Int("nearby", result.NearbyCells).
		Int("noise", result.NoiseCells).
		Int("zones", len(result.Zones)).
		Dur("duration", time.Since(start)).
		Msg("fog-zone search complete")

	return result, nil
}

func (s *Service) record(ctx context.Context, r *Result, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.candidates.Record(ctx, int64(r.CandidateCells))
	s.metrics.zones.Record(ctx, int64(len(r.Zones)))
	s.metrics.duration.Record(ctx, d.Seconds())
}
