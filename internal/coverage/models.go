// Package coverage tracks which grid cells each user has cleared and which
// cells make up each region, and exposes the set difference between them.
package coverage

import (
	"errors"
	"math"
)

// Coverage errors.
var (
	// ErrGapProvider wraps every failure reported by the coverage store.
	ErrGapProvider = errors.New("coverage gap provider failed")
	// ErrInvalidTrack indicates a track contains points that cannot be placed on the grid.
	ErrInvalidTrack = errors.New("invalid track")
	// ErrInvalidRegion indicates region geometry produced no cells.
	ErrInvalidRegion = errors.New("invalid region")
)

// Summary describes a user's progress through a region.
type Summary struct {
	RegionID        string  `json:"regionId"`
	TotalCells      int     `json:"totalCells"`
	ClearedCells    int     `json:"clearedCells"`
	UnclearedCells  int     `json:"unclearedCells"`
	CoveragePercent float64 `json:"coveragePercent"`
}

// NewSummary builds a Summary from raw counts. The percentage is 0 for an
// empty region and is rounded to two decimals.
func NewSummary(regionID string, total, cleared int) *Summary {
	s := &Summary{
		RegionID:       regionID,
		TotalCells:     total,
		ClearedCells:   cleared,
		UnclearedCells: total - cleared,
	}
	if total > 0 {
		pct := float64(cleared) / float64(total) * 100
		s.CoveragePercent = math.Round(pct*100) / 100
	}
	return s
}

// TrackResult is the outcome of recording a track.
type TrackResult struct {
	// Cells is every cell the track crossed, sorted.
	Cells []string `json:"cells"`
	// NewlyCleared is how many of those cells the user had not cleared before.
	NewlyCleared int `json:"newlyCleared"`
}

// ImportResult is the outcome of importing a region's cell inventory.
type ImportResult struct {
	RegionID  string `json:"regionId"`
	CellCount int    `json:"cellCount"`
	Inserted  int    `json:"inserted"`
}
