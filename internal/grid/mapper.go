package grid

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/uber/h3-go/v4"
)

// Mapper converts geographic input into grid cells at a fixed resolution.
type Mapper struct {
	resolution   int
	gapThreshold float64
}

// NewMapper creates a Mapper. Zero-valued fields take their defaults.
func NewMapper(cfg Config) *Mapper {
	resolution := cfg.Resolution
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	gap := cfg.GapThresholdMeters
	if gap <= 0 {
		gap = DefaultGapThresholdMeters
	}

	return &Mapper{
		resolution:   resolution,
		gapThreshold: gap,
	}
}

// Resolution returns the working H3 resolution.
func (m *Mapper) Resolution() int {
	return m.resolution
}

// GapThreshold returns the densification step in meters.
func (m *Mapper) GapThreshold() float64 {
	return m.gapThreshold
}

// CellOf returns the cell containing p.
func (m *Mapper) CellOf(p orb.Point) (string, error) {
	if !ValidPoint(p) {
		return "", fmt.Errorf("%w: (%f, %f)", ErrInvalidPoint, p.Lon(), p.Lat())
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Lat(), p.Lon()), m.resolution)
	if err != nil {
		return "", fmt.Errorf("indexing point (%f, %f): %w", p.Lon(), p.Lat(), err)
	}
	return c.String(), nil
}

// ValidPoint reports whether p is a finite, in-range longitude/latitude pair.
func ValidPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// CellCenter returns the center point of a cell.
func (m *Mapper) CellCenter(cell string) (orb.Point, error) {
	c, err := ParseCell(cell)
	if err != nil {
		return orb.Point{}, err
	}
	ll, err := c.LatLng()
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %s", ErrInvalidCell, cell)
	}
	return orb.Point{ll.Lng, ll.Lat}, nil
}

// TrackToCells converts a tracked path into the set of cells it crosses.
// Consecutive fixes farther apart than the gap threshold are densified so the
// resulting coverage has no holes between them.
func (m *Mapper) TrackToCells(path orb.LineString) (CellSet, error) {
	for _, p := range path {
		if !ValidPoint(p) {
			return nil, fmt.Errorf("%w: (%f, %f)", ErrInvalidPoint, p.Lon(), p.Lat())
		}
	}

	cells := make(CellSet)
	for _, p := range Densify(path, m.gapThreshold) {
		cell, err := m.CellOf(p)
		if err != nil {
			return nil, err
		}
		cells.Add(cell)
	}
	return cells, nil
}

// Densify returns path with extra points linearly interpolated along every
// segment longer than gapMeters, one every gapMeters with the step count
// rounded up. The first and last points are always kept.
func Densify(path orb.LineString, gapMeters float64) orb.LineString {
	if len(path) == 0 {
		return nil
	}

	out := make(orb.LineString, 0, len(path))
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		out = append(out, a)

		d := geo.DistanceHaversine(a, b)
		if d <= gapMeters {
			continue
		}

		steps := int(math.Ceil(d / gapMeters))
		for s := 1; s < steps; s++ {
			f := float64(s) / float64(steps)
			out = append(out, orb.Point{
				a[0] + (b[0]-a[0])*f,
				a[1] + (b[1]-a[1])*f,
			})
		}
	}

	return append(out, path[len(path)-1])
}

// GridDistance returns the number of grid steps between two cells.
// It returns ErrIncomparable when the distance is undefined.
func (m *Mapper) GridDistance(a, b string) (int, error) {
	return GridDistance(a, b)
}

// GridDistance returns the number of grid steps between two cells at the same resolution.
func GridDistance(a, b string) (int, error) {
	ca, err := ParseCell(a)
	if err != nil {
		return 0, err
	}
	cb, err := ParseCell(b)
	if err != nil {
		return 0, err
	}

	if ca.Resolution() != cb.Resolution() {
		return 0, fmt.Errorf("%w: resolution %d vs %d", ErrIncomparable, ca.Resolution(), cb.Resolution())
	}

	d, err := h3.GridDistance(ca, cb)
	if err != nil {
		return 0, fmt.Errorf("%w: %s -> %s: %v", ErrIncomparable, a, b, err)
	}
	return d, nil
}

// ParseCell parses a hexadecimal cell identifier.
func ParseCell(s string) (h3.Cell, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}
	c := h3.Cell(v)
	if !c.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, s)
	}
	return c, nil
}
