// Package grid maps tracked paths and region polygons onto a fixed-resolution
// hexagonal grid (H3) and measures distances between grid cells.
package grid

import (
	"errors"
	"sort"
)

// Grid errors.
var (
	// ErrIncomparable indicates two cells have no defined grid distance
	// (different resolutions or different icosahedron faces).
	ErrIncomparable = errors.New("grid cells are incomparable")
	// ErrInvalidCell indicates a string is not a valid cell identifier.
	ErrInvalidCell = errors.New("invalid grid cell")
	// ErrInvalidPoint indicates coordinates outside the WGS84 range.
	ErrInvalidPoint = errors.New("invalid point")
	// ErrInvalidRegion indicates region geometry could not be decoded.
	ErrInvalidRegion = errors.New("invalid region geometry")
)

const (
	// DefaultResolution is H3 resolution 10 (~66 m edge length).
	DefaultResolution = 10
	// DefaultGapThresholdMeters is the maximum straight-line gap left between
	// two consecutive samples of a track.
	DefaultGapThresholdMeters = 50.0
	// DefaultCellAreaKm2 is the average area of one resolution 10 cell.
	DefaultCellAreaKm2 = 0.015
)

// Config holds the grid tuning.
type Config struct {
	// Resolution is the H3 resolution shared by every cell in the process.
	Resolution int
	// GapThresholdMeters is the densification step for tracks.
	GapThresholdMeters float64
}

// DefaultConfig returns the default grid configuration.
func DefaultConfig() Config {
	return Config{
		Resolution:         DefaultResolution,
		GapThresholdMeters: DefaultGapThresholdMeters,
	}
}

// CellSet is a deduplicated set of grid cell identifiers.
type CellSet map[string]struct{}

// NewCellSet creates a set holding the given cells.
func NewCellSet(cells ...string) CellSet {
	s := make(CellSet, len(cells))
	for _, c := range cells {
		s.Add(c)
	}
	return s
}

// Add inserts a cell.
func (s CellSet) Add(cell string) {
	s[cell] = struct{}{}
}

// Contains reports whether the cell is in the set.
func (s CellSet) Contains(cell string) bool {
	_, ok := s[cell]
	return ok
}

// Len returns the number of cells.
func (s CellSet) Len() int {
	return len(s)
}

// Union adds every cell of other to s.
func (s CellSet) Union(other CellSet) {
	for c := range other {
		s[c] = struct{}{}
	}
}

// Slice returns the cells in ascending order.
func (s CellSet) Slice() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
