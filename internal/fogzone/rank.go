package fogzone

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// Rank turns clusters into fog zones ordered by descending priority.
//
// Ids are assigned in cluster order before sorting, so they are not stable
// across calls. priorityScore is hexCount / (distanceKm + 1); distance, area
// and priority are rounded only when written. At most maxZones zones are
// returned.
func Rank(clusters []Cluster, reference orb.Point, maxZones int, cellAreaKm2 float64) []FogZone {
	zones := make([]FogZone, 0, len(clusters))

	for i, c := range clusters {
		if len(c.Members) == 0 {
			continue
		}

		centroid := centerOfMass(c.Members)
		distanceKm := geo.DistanceHaversine(reference, centroid) / 1000
		hexCount := len(c.Members)

		zones = append(zones, FogZone{
			ID:                 fmt.Sprintf("zone_%d", i),
			Centroid:           centroid,
			HexCount:           hexCount,
			EstimatedAreaKm2:   round(float64(hexCount)*cellAreaKm2, 3),
			DistanceFromUserKm: round(distanceKm, 2),
			PriorityScore:      round(float64(hexCount)/(distanceKm+1), 2),
		})
	}

	sort.SliceStable(zones, func(a, b int) bool {
		return zones[a].PriorityScore > zones[b].PriorityScore
	})

	if maxZones >= 0 && len(zones) > maxZones {
		zones = zones[:maxZones]
	}
	return zones
}

// centerOfMass returns the area centroid of the convex hull of the member
// locations, so a dense knot of members does not pull the centroid towards
// itself. Degenerate hulls (fewer than three corners or zero area) fall back
// to the mean location.
func centerOfMass(members []Point) orb.Point {
	locs := make([]orb.Point, len(members))
	for i, m := range members {
		locs[i] = m.Location
	}

	hull := convexHull(locs)
	if len(hull) >= 3 {
		poly := orb.Polygon{append(hull, hull[0])}
		if planar.Area(poly) > 0 {
			c, _ := planar.CentroidArea(poly)
			return c
		}
	}
	return mean(locs)
}

// convexHull returns the hull corners in counter-clockwise order using
// Andrew's monotone chain. Collinear and duplicate points are dropped.
func convexHull(pts []orb.Point) orb.Ring {
	if len(pts) < 3 {
		return nil
	}
	sorted := slices.Clone(pts)
	slices.SortFunc(sorted, func(a, b orb.Point) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}
	chain := func(pts []orb.Point) []orb.Point {
		var out []orb.Point
		for _, p := range pts {
			for len(out) >= 2 && cross(out[len(out)-2], out[len(out)-1], p) <= 0 {
				out = out[:len(out)-1]
			}
			out = append(out, p)
		}
		return out[:len(out)-1]
	}

	lower := chain(sorted)
	slices.Reverse(sorted)
	upper := chain(sorted)
	return append(orb.Ring(lower), upper...)
}

func mean(pts []orb.Point) orb.Point {
	var lon, lat float64
	for _, p := range pts {
		lon += p[0]
		lat += p[1]
	}
	n := float64(len(pts))
	return orb.Point{lon / n, lat / n}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
