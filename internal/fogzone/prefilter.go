package fogzone

import "github.com/hexfog/hexfog/internal/grid"

// FilterNearby keeps the cells within maxGridSteps of center, preserving
// input order. Cells whose grid distance cannot be computed are dropped.
func FilterNearby(cells []string, center string, maxGridSteps int) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		d, err := grid.GridDistance(center, c)
		if err != nil {
			continue
		}
		if d <= maxGridSteps {
			out = append(out, c)
		}
	}
	return out
}
