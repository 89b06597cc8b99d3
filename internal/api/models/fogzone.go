package models

import "github.com/hexfog/hexfog/internal/fogzone"

// FogZoneSearchRequest is the request body for a fog-zone search.
type FogZoneSearchRequest struct {
	Location Position `json:"location"`
	MaxZones *int     `json:"maxZones,omitempty"`
}

// FogZoneSearchResponse holds ranked zones, nearest-and-largest first.
type FogZoneSearchResponse struct {
	Zones          []fogzone.FogZone `json:"zones"`
	CandidateCells int               `json:"candidateCells"`
	NearbyCells    int               `json:"nearbyCells"`
	NoiseCells     int               `json:"noiseCells"`
	GeneratedAt    Timestamp         `json:"generatedAt"`
}
