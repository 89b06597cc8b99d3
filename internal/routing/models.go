// Package routing fetches turn-by-turn routes from an external provider and
// scores them by how often they interrupt the flow of travel.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
)

// Sentinel errors for routing operations.
var (
	// ErrProviderUnavailable indicates the routing provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates no valid route exists between the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are invalid or out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedProfile indicates the provider does not serve the requested profile.
	ErrUnsupportedProfile = errors.New("unsupported route profile")
)

// Provider defines the interface for routing providers.
type Provider interface {
	// GetDirections retrieves routes through the requested waypoints.
	// Returns multiple route alternatives when available.
	GetDirections(ctx context.Context, req DirectionsRequest) (*DirectionsResponse, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
	// SupportedProfiles returns the list of route profiles this provider supports.
	SupportedProfiles() []RouteProfile
}

// RouteProfile represents a routing profile (mode of transport).
type RouteProfile string

const (
	// ProfileWalk routes pedestrians.
	ProfileWalk RouteProfile = "foot"
	// ProfileBike routes cyclists.
	ProfileBike RouteProfile = "bike"
	// ProfileDrive routes cars.
	ProfileDrive RouteProfile = "driving"
)

// DirectionsRequest is the request for computing routes.
type DirectionsRequest struct {
	// Waypoints are visited in order; at least two are required.
	Waypoints       []orb.Point
	Profile         RouteProfile
	MaxAlternatives int // Maximum number of alternative routes to return (default: 2)
}

// DirectionsResponse is the response containing route alternatives.
type DirectionsResponse struct {
	Routes    []Route
	Provider  string
	FetchedAt time.Time
}

// Route represents a single route option.
type Route struct {
	GeometryPolyline string  `json:"geometryPolyline"` // Encoded polyline (precision 5)
	DistanceMeters   float64 `json:"distanceMeters"`
	DurationSeconds  float64 `json:"durationSeconds"`
	Summary          string  `json:"summary,omitempty"`
	Legs             []Leg   `json:"legs"`
}

// Steps returns the route's steps with all legs concatenated in order.
func (r Route) Steps() []RouteStep {
	return FlattenSteps(r.Legs)
}

// Leg is the part of a route between two consecutive waypoints.
type Leg struct {
	Summary         string      `json:"summary,omitempty"`
	DistanceMeters  float64     `json:"distanceMeters"`
	DurationSeconds float64     `json:"durationSeconds"`
	Steps           []RouteStep `json:"steps"`
}

// RouteStep is one maneuver along a route.
type RouteStep struct {
	Instruction     string   `json:"instruction"`
	DistanceMeters  float64  `json:"distanceMeters"`
	DurationSeconds float64  `json:"durationSeconds"`
	Maneuver        Maneuver `json:"maneuver"`
}

// Maneuver describes the action taken at the start of a step.
type Maneuver struct {
	Type     string    `json:"type"`
	Modifier string    `json:"modifier,omitempty"`
	Location orb.Point `json:"location"`
}

// Maneuver types reported by the provider.
const (
	ManeuverTurn       = "turn"
	ManeuverNewName    = "new name"
	ManeuverDepart     = "depart"
	ManeuverArrive     = "arrive"
	ManeuverMerge      = "merge"
	ManeuverFork       = "fork"
	ManeuverContinue   = "continue"
	ManeuverEndOfRoad  = "end of road"
	ManeuverRoundabout = "roundabout"
	ManeuverRotary     = "rotary"
)

// FlattenSteps concatenates the steps of every leg in order. Leg boundaries
// are intentionally lost: scoring treats the route as one continuous path.
func FlattenSteps(legs []Leg) []RouteStep {
	n := 0
	for _, l := range legs {
		n += len(l.Steps)
	}

	steps := make([]RouteStep, 0, n)
	for _, l := range legs {
		steps = append(steps, l.Steps...)
	}
	return steps
}

// FlowScore summarises how often a route interrupts travel.
type FlowScore struct {
	TurnCount   int     `json:"turnCount"`
	TurnsPerKm  float64 `json:"turnsPerKm"`
	FlowPenalty float64 `json:"flowPenalty"`
}

// ScoredRoute is a route with its flow score.
type ScoredRoute struct {
	Route
	Flow FlowScore `json:"flow"`
	// NewCells is how many unexplored cells the route crosses, when a region was given.
	NewCells *int `json:"newCells,omitempty"`
}

// Error provides detailed error information from the routing provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
