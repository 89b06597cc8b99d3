package fogzone_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"

	"github.com/hexfog/hexfog/internal/fogzone"
	"github.com/hexfog/hexfog/internal/grid"
)

var center = orb.Point{4.9041, 52.3676}

// distinctCells maps points to cells, dropping duplicates and anything in skip.
func distinctCells(t *testing.T, m *grid.Mapper, points []orb.Point, skip grid.CellSet) []string {
	t.Helper()
	seen := make(grid.CellSet)
	var out []string
	for _, p := range points {
		c, err := m.CellOf(p)
		require.NoError(t, err)
		if seen.Contains(c) || skip.Contains(c) {
			continue
		}
		seen.Add(c)
		out = append(out, c)
	}
	return out
}

func TestFilterNearby(t *testing.T) {
	m := grid.NewMapper(grid.DefaultConfig())
	centerCell, err := m.CellOf(center)
	require.NoError(t, err)

	// Points within ~420 m on each axis are a handful of grid steps away.
	var near []orb.Point
	for dx := -420.0; dx <= 420; dx += 60 {
		for dy := -420.0; dy <= 420; dy += 60 {
			p := geo.PointAtBearingAndDistance(center, 90, dx)
			near = append(near, geo.PointAtBearingAndDistance(p, 0, dy))
		}
	}
	within := distinctCells(t, m, near, nil)
	require.GreaterOrEqual(t, len(within), 30)
	within = within[:30]

	// Points 3 to 10 km out are well beyond ten steps.
	var far []orb.Point
	for i := 0; i < 100; i++ {
		far = append(far, geo.PointAtBearingAndDistance(center, float64(i)*7, 3000+float64(i)*70))
	}
	beyond := distinctCells(t, m, far, grid.NewCellSet(within...))
	require.GreaterOrEqual(t, len(beyond), 70)
	beyond = beyond[:70]

	candidates := make([]string, 0, 100)
	for i := 0; i < 70; i++ {
		candidates = append(candidates, beyond[i])
		if i < 30 {
			candidates = append(candidates, within[i])
		}
	}
	require.Len(t, candidates, 100)

	out := fogzone.FilterNearby(candidates, centerCell, 10)
	assert.Len(t, out, 30)
	assert.ElementsMatch(t, within, out)
}

func TestFilterNearby_DropsIncomparable(t *testing.T) {
	m := grid.NewMapper(grid.DefaultConfig())
	centerCell, err := m.CellOf(center)
	require.NoError(t, err)

	coarse, err := h3.LatLngToCell(h3.NewLatLng(center.Lat(), center.Lon()), 6)
	require.NoError(t, err)

	out := fogzone.FilterNearby([]string{centerCell, coarse.String(), "garbage"}, centerCell, 50)
	assert.Equal(t, []string{centerCell}, out)
}

func TestFilterNearby_Empty(t *testing.T) {
	out := fogzone.FilterNearby(nil, "8a1969053247fff", 50)
	assert.Empty(t, out)
}
