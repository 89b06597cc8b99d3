package fogzone

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
)

// indexed lets a point be stored in the quadtree and mapped back to its input slot.
type indexed struct {
	idx int
	p   orb.Point
}

func (i indexed) Point() orb.Point { return i.p }

// neighborIndex answers fixed-radius neighbor queries over a point set.
type neighborIndex struct {
	points []Point
	tree   *quadtree.Quadtree
	radius float64 // meters
}

func newNeighborIndex(points []Point, radiusMeters float64) *neighborIndex {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.Location
	}

	// The tree silently ignores points outside its bound.
	bound := mp.Bound().Pad(1e-6)
	tree := quadtree.New(bound)
	for i, p := range points {
		_ = tree.Add(indexed{idx: i, p: p.Location})
	}

	return &neighborIndex{points: points, tree: tree, radius: radiusMeters}
}

// neighbors returns the indexes of all points within the radius of point i,
// including i itself.
func (n *neighborIndex) neighbors(i int) []int {
	center := n.points[i].Location
	candidates := n.tree.InBound(nil, geo.NewBoundAroundPoint(center, n.radius))

	out := make([]int, 0, len(candidates))
	for _, c := range candidates {
		ip := c.(indexed)
		if geo.DistanceHaversine(center, ip.p) <= n.radius {
			out = append(out, ip.idx)
		}
	}
	return out
}

// DBSCAN groups points into density-based clusters. A point is a core point when at least
// minPoints points (itself included) lie within maxDistanceKm of it; clusters
// are the maximal sets of points density-reachable from a core point. Points
// reachable from no core point are labelled Noise.
//
// Fewer than minPoints input points short-circuits to no clusters.
func DBSCAN(points []Point, maxDistanceKm float64, minPoints int) Clustering {
	assignments := make([]Assignment, len(points))
	if len(points) == 0 || len(points) < minPoints {
		for i := range assignments {
			assignments[i] = Assignment{Label: Noise}
		}
		return Clustering{Assignments: assignments}
	}

	index := newNeighborIndex(points, maxDistanceKm*1000)
	var clusters []Cluster

	for i := range points {
		if assignments[i].Label != Unclassified {
			continue
		}

		seeds := index.neighbors(i)
		if len(seeds) < minPoints {
			assignments[i] = Assignment{Label: Noise}
			continue
		}

		id := len(clusters)
		assignments[i] = Assignment{Label: Core, Cluster: id}
		members := []Point{points[i]}

		for q := 0; q < len(seeds); q++ {
			j := seeds[q]
			switch assignments[j].Label {
			case Noise:
				// Previously noise, but reachable from this cluster.
				assignments[j] = Assignment{Label: Border, Cluster: id}
				members = append(members, points[j])
				continue
			case Unclassified:
			default:
				continue
			}

			nb := index.neighbors(j)
			if len(nb) >= minPoints {
				assignments[j] = Assignment{Label: Core, Cluster: id}
				seeds = append(seeds, nb...)
			} else {
				assignments[j] = Assignment{Label: Border, Cluster: id}
			}
			members = append(members, points[j])
		}

		clusters = append(clusters, Cluster{ID: id, Members: members})
	}

	return Clustering{Clusters: clusters, Assignments: assignments}
}
