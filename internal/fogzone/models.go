// Package fogzone finds dense pockets of unexplored grid cells near a user
// and ranks them as exploration targets.
package fogzone

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/hexfog/hexfog/internal/config"
	"github.com/hexfog/hexfog/internal/grid"
)

// ErrInvalidLocation indicates the query location could not be placed on the grid.
var ErrInvalidLocation = errors.New("invalid query location")

// Defaults tuned for street-level pockets in an urban grid.
const (
	DefaultSearchRadiusSteps = 50
	DefaultMaxDistanceKm     = 0.5
	DefaultMinPoints         = 20
	DefaultMaxZones          = 20
)

// Config holds the fog-zone pipeline tuning.
type Config struct {
	// SearchRadiusSteps bounds the pre-filter, in grid steps from the query cell.
	SearchRadiusSteps int

	// MaxDistanceKm is the clustering neighborhood radius.
	MaxDistanceKm float64

	// MinPoints is the clustering density threshold (the point itself included).
	MinPoints int

	// MaxZones caps the number of ranked zones returned.
	MaxZones int

	// CellAreaKm2 is the average area of one grid cell.
	CellAreaKm2 float64

	// Logger for pipeline operations.
	Logger zerolog.Logger
}

// ConfigFromEnv reads the pipeline tuning from the environment.
func ConfigFromEnv(logger zerolog.Logger) Config {
	return Config{
		SearchRadiusSteps: config.Int("FOG_SEARCH_RADIUS_STEPS", DefaultSearchRadiusSteps),
		MaxDistanceKm:     config.Float("FOG_CLUSTER_EPS_KM", DefaultMaxDistanceKm),
		MinPoints:         config.Int("FOG_CLUSTER_MIN_POINTS", DefaultMinPoints),
		MaxZones:          config.Int("FOG_MAX_ZONES", DefaultMaxZones),
		CellAreaKm2:       config.Float("HEX_CELL_AREA_KM2", grid.DefaultCellAreaKm2),
		Logger:            logger,
	}
}

// FogZone is a ranked cluster of uncleared cells.
type FogZone struct {
	ID                 string    `json:"id"`
	Centroid           orb.Point `json:"centroid"`
	HexCount           int       `json:"hexCount"`
	EstimatedAreaKm2   float64   `json:"estimatedAreaKm2"`
	DistanceFromUserKm float64   `json:"distanceFromUser"`
	PriorityScore      float64   `json:"priorityScore"`
}

// Point is a clustering input: a cell center tagged with its cell.
type Point struct {
	Cell     string
	Location orb.Point
}

// Label is the clustering outcome for a single point.
type Label int

// Point labels. Unclassified is only observed while clustering is in progress.
const (
	Unclassified Label = iota
	Core
	Border
	Noise
)

func (l Label) String() string {
	switch l {
	case Core:
		return "core"
	case Border:
		return "border"
	case Noise:
		return "noise"
	default:
		return "unclassified"
	}
}

// Assignment records how a point was classified and, for Core and Border
// points, which cluster it belongs to.
type Assignment struct {
	Label   Label
	Cluster int
}

// InCluster reports whether the point is a member of some cluster.
func (a Assignment) InCluster() bool {
	return a.Label == Core || a.Label == Border
}

// Cluster is a maximal density-connected group of points.
type Cluster struct {
	ID      int
	Members []Point
}

// Clustering is the result of one clustering run.
type Clustering struct {
	// Clusters in discovery order; Clusters[i].ID == i.
	Clusters []Cluster
	// Assignments parallels the input points.
	Assignments []Assignment
}

// NoiseCount returns the number of points excluded from every cluster.
func (c Clustering) NoiseCount() int {
	n := 0
	for _, a := range c.Assignments {
		if a.Label == Noise {
			n++
		}
	}
	return n
}
