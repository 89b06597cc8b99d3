package models

import "github.com/hexfog/hexfog/internal/routing"

// RouteScoreRequest scores a step sequence the client already has.
type RouteScoreRequest struct {
	Steps               []routing.RouteStep `json:"steps"`
	Legs                []routing.Leg       `json:"legs,omitempty"`
	TotalDistanceMeters float64             `json:"totalDistanceMeters"`
}

// RouteComputeRequest is the request body for computing scored routes.
type RouteComputeRequest struct {
	Waypoints    []Position `json:"waypoints"`
	Profile      string     `json:"profile,omitempty"`
	Alternatives *int       `json:"alternatives,omitempty"`
	// RegionID enables new-cell counts for the authenticated user.
	RegionID string `json:"regionId,omitempty"`
}

// RouteComputeResponse is the response for route computation.
type RouteComputeResponse struct {
	GeneratedAt Timestamp             `json:"generatedAt"`
	Provider    string                `json:"provider"`
	Routes      []routing.ScoredRoute `json:"routes"`
}
