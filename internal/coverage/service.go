package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/hexfog/hexfog/internal/grid"
)

// ServiceConfig holds configuration for the coverage service.
type ServiceConfig struct {
	// Store persists inventories and cleared cells.
	Store Store

	// Mapper converts tracks and regions into cells.
	Mapper *grid.Mapper

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service records user tracks, imports region inventories and answers
// coverage-gap queries. It implements GapProvider; every store failure is
// wrapped in ErrGapProvider.
type Service struct {
	store  Store
	mapper *grid.Mapper
	logger zerolog.Logger
}

// NewService creates a new coverage service.
func NewService(cfg ServiceConfig) *Service {
	mapper := cfg.Mapper
	if mapper == nil {
		mapper = grid.NewMapper(grid.DefaultConfig())
	}

	return &Service{
		store:  cfg.Store,
		mapper: mapper,
		logger: cfg.Logger,
	}
}

// Mapper returns the grid mapper used by the service.
func (s *Service) Mapper() *grid.Mapper {
	return s.mapper
}

// RecordTrack marks every cell crossed by path as cleared for the user.
func (s *Service) RecordTrack(ctx context.Context, userID string, path orb.LineString) (*TrackResult, error) {
	set, err := s.mapper.TrackToCells(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}

	cells := set.Slice()
	if len(cells) == 0 {
		return &TrackResult{Cells: cells}, nil
	}

	added, err := s.store.MarkCleared(ctx, userID, cells)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Int("cells", len(cells)).Msg("failed to mark cells cleared")
		return nil, gapError(err)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Int("points", len(path)).
		Int("cells", len(cells)).
		Int("newly_cleared", added).
		Msg("recorded track")

	return &TrackResult{Cells: cells, NewlyCleared: added}, nil
}

// ImportRegion adds the cells covering polys to the region inventory.
// Re-importing the same geometry inserts nothing.
func (s *Service) ImportRegion(ctx context.Context, regionID string, polys orb.MultiPolygon) (*ImportResult, error) {
	set, err := s.mapper.RegionSetToCells(polys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegion, err)
	}
	if set.Len() == 0 {
		return nil, fmt.Errorf("%w: geometry covers no cells", ErrInvalidRegion)
	}

	inserted, err := s.store.UpsertInventory(ctx, regionID, set.Slice())
	if err != nil {
		s.logger.Error().Err(err).Str("region_id", regionID).Msg("failed to upsert region inventory")
		return nil, gapError(err)
	}

	s.logger.Info().
		Str("region_id", regionID).
		Int("polygons", len(polys)).
		Int("cells", set.Len()).
		Int("inserted", inserted).
		Msg("imported region")

	return &ImportResult{RegionID: regionID, CellCount: set.Len(), Inserted: inserted}, nil
}

// NewCellsAlong returns how many uncleared region cells a path would clear.
func (s *Service) NewCellsAlong(ctx context.Context, userID, regionID string, path orb.LineString) (int, error) {
	set, err := s.mapper.TrackToCells(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}
	if set.Len() == 0 {
		return 0, nil
	}

	fresh, err := s.store.FilterUncleared(ctx, userID, regionID, set.Slice())
	if err != nil {
		return 0, gapError(err)
	}
	return len(fresh), nil
}

// Summary returns the user's progress through a region.
func (s *Service) Summary(ctx context.Context, userID, regionID string) (*Summary, error) {
	summary, err := s.store.Summary(ctx, userID, regionID)
	if err != nil {
		return nil, gapError(err)
	}
	return summary, nil
}

// UnclearedCells returns the region cells the user has not cleared.
func (s *Service) UnclearedCells(ctx context.Context, userID, regionID string) ([]string, error) {
	cells, err := s.store.UnclearedCells(ctx, userID, regionID)
	if err != nil {
		return nil, gapError(err)
	}
	return cells, nil
}

func gapError(err error) error {
	if errors.Is(err, ErrGapProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGapProvider, err)
}

var _ GapProvider = (*Service)(nil)
