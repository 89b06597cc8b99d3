// Package worker ingests recorded tracks and region imports from Pub/Sub.
package worker

import (
	"encoding/json"
	"time"

	"github.com/hexfog/hexfog/internal/config"
)

// Job types carried in the job_type field.
const (
	JobTrackRecorded = "track_recorded"
	JobRegionImport  = "region_import"
)

// IngestConfig holds configuration for the ingest job.
type IngestConfig struct {
	// Concurrency is the number of tracks processed at once.
	// Default: 4
	Concurrency int

	// Timeout bounds the processing of a single track or region.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultIngestConfig returns the default ingest configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

// IngestConfigFromEnv reads INGEST_CONCURRENCY and INGEST_TIMEOUT.
func IngestConfigFromEnv() IngestConfig {
	def := DefaultIngestConfig()
	return IngestConfig{
		Concurrency: config.Int("INGEST_CONCURRENCY", def.Concurrency),
		Timeout:     config.Duration("INGEST_TIMEOUT", def.Timeout),
	}
}

// Track is one recorded path belonging to a user.
type Track struct {
	UserID      string       `json:"user_id"`
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
}

// Message is the envelope of every ingest message.
type Message struct {
	JobType string `json:"job_type"`

	// track_recorded: either a single track inline or a batch in Tracks.
	UserID      string       `json:"user_id,omitempty"`
	Coordinates [][2]float64 `json:"coordinates,omitempty"`
	Tracks      []Track      `json:"tracks,omitempty"`

	// region_import
	RegionID string          `json:"region_id,omitempty"`
	GeoJSON  json.RawMessage `json:"geojson,omitempty"`
}

// AllTracks returns the inline track followed by any batched tracks.
func (m Message) AllTracks() []Track {
	tracks := make([]Track, 0, len(m.Tracks)+1)
	if m.UserID != "" || len(m.Coordinates) > 0 {
		tracks = append(tracks, Track{UserID: m.UserID, Coordinates: m.Coordinates})
	}
	return append(tracks, m.Tracks...)
}
