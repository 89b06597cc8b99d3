package models

import "github.com/hexfog/hexfog/internal/coverage"

// TrackRequest is the request body for recording a travelled path.
type TrackRequest struct {
	// RegionID optionally scopes the response summary.
	RegionID    string     `json:"regionId,omitempty"`
	Coordinates []Position `json:"coordinates"`
}

// TrackResponse lists the cells a recorded path cleared.
type TrackResponse struct {
	CellCount    int               `json:"cellCount"`
	NewlyCleared int               `json:"newlyCleared"`
	Cells        []string          `json:"cells"`
	Coverage     *coverage.Summary `json:"coverage,omitempty"`
}

// RegionImportResponse reports the result of a region import.
type RegionImportResponse struct {
	RegionID  string `json:"regionId"`
	CellCount int    `json:"cellCount"`
	Inserted  int    `json:"inserted"`
}

// RegionImportQueued acknowledges an asynchronous region import.
type RegionImportQueued struct {
	RegionID  string `json:"regionId"`
	MessageID string `json:"messageId"`
}
