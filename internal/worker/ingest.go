package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hexfog/hexfog/internal/coverage"
)

// Recorder applies tracks and region imports to coverage storage.
type Recorder interface {
	RecordTrack(ctx context.Context, userID string, path orb.LineString) (*coverage.TrackResult, error)
	ImportRegion(ctx context.Context, regionID string, polys orb.MultiPolygon) (*coverage.ImportResult, error)
}

// IngestJob records batches of tracks with bounded concurrency.
type IngestJob struct {
	config   IngestConfig
	recorder Recorder
	logger   zerolog.Logger

	metrics *IngestMetrics
}

// IngestMetrics tracks ingest statistics.
type IngestMetrics struct {
	mu sync.RWMutex

	Batches        int64
	TracksOK       int64
	TracksRejected int64
	TracksFailed   int64
	CellsCleared   int64
	RegionsLoaded  int64

	LastBatchAt       time.Time
	LastBatchDuration time.Duration
}

// IngestJobConfig holds configuration for creating an IngestJob.
type IngestJobConfig struct {
	Config   IngestConfig
	Recorder Recorder
	Logger   zerolog.Logger
}

// NewIngestJob creates a new ingest job.
func NewIngestJob(cfg IngestJobConfig) *IngestJob {
	config := cfg.Config
	def := DefaultIngestConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = def.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &IngestJob{
		config:   config,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		metrics:  &IngestMetrics{},
	}
}

// IngestResult contains the result of one batch.
type IngestResult struct {
	BatchID      string
	Duration     time.Duration
	Tracks       int
	Recorded     int
	Rejected     int
	Failed       int
	CellsCleared int
	Errors       []TrackError
}

// TrackError records why a track in a batch was not recorded.
type TrackError struct {
	Index  int
	UserID string
	Error  string
}

// Retryable reports whether any track failed for a transient reason.
// Rejected tracks are bad input and are never retried.
func (r *IngestResult) Retryable() bool {
	return r.Failed > 0
}

type trackResult struct {
	index    int
	userID   string
	cleared  int
	rejected bool
	err      error
}

// Run records every track in the batch.
func (j *IngestJob) Run(ctx context.Context, tracks []Track) *IngestResult {
	start := time.Now()
	result := &IngestResult{
		BatchID: uuid.NewString(),
		Tracks:  len(tracks),
	}

	logger := j.logger.With().Str("batch_id", result.BatchID).Logger()
	logger.Debug().
		Int("tracks", len(tracks)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting ingest batch")

	// Results are stored by index so errors are reported in batch order.
	results := make([]trackResult, len(tracks))
	var g errgroup.Group
	g.SetLimit(max(j.config.Concurrency, 1))
	for i, t := range tracks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = trackResult{index: i, userID: t.UserID, err: err}
				return nil
			}
			results[i] = j.recordTrack(ctx, i, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, tr := range results {
		switch {
		case tr.err == nil:
			result.Recorded++
			result.CellsCleared += tr.cleared
		case tr.rejected:
			result.Rejected++
			result.Errors = append(result.Errors, TrackError{Index: tr.index, UserID: tr.userID, Error: tr.err.Error()})
		default:
			result.Failed++
			result.Errors = append(result.Errors, TrackError{Index: tr.index, UserID: tr.userID, Error: tr.err.Error()})
		}
	}

	result.Duration = time.Since(start)
	j.updateMetrics(result)

	logger.Info().
		Dur("duration", result.Duration).
		Int("recorded", result.Recorded).
		Int("rejected", result.Rejected).
		Int("failed", result.Failed).
		Int("cells_cleared", result.CellsCleared).
		Msg("ingest batch completed")

	return result
}

func (j *IngestJob) recordTrack(ctx context.Context, idx int, t Track) trackResult {
	tr := trackResult{index: idx, userID: t.UserID}

	if t.UserID == "" {
		tr.rejected = true
		tr.err = errors.New("user_id is required")
		return tr
	}

	path := make(orb.LineString, len(t.Coordinates))
	for i, c := range t.Coordinates {
		path[i] = orb.Point{c[0], c[1]}
	}

	trackCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.recorder.RecordTrack(trackCtx, t.UserID, path)
	if err != nil {
		tr.err = err
		tr.rejected = errors.Is(err, coverage.ErrInvalidTrack)
		return tr
	}

	tr.cleared = res.NewlyCleared
	return tr
}

// ImportRegion loads a region inventory.
func (j *IngestJob) ImportRegion(ctx context.Context, regionID string, polys orb.MultiPolygon) (*coverage.ImportResult, error) {
	importCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.recorder.ImportRegion(importCtx, regionID, polys)
	if err != nil {
		return nil, err
	}

	j.metrics.mu.Lock()
	j.metrics.RegionsLoaded++
	j.metrics.mu.Unlock()

	return res, nil
}

func (j *IngestJob) updateMetrics(result *IngestResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.Batches++
	j.metrics.TracksOK += int64(result.Recorded)
	j.metrics.TracksRejected += int64(result.Rejected)
	j.metrics.TracksFailed += int64(result.Failed)
	j.metrics.CellsCleared += int64(result.CellsCleared)
	j.metrics.LastBatchAt = time.Now()
	j.metrics.LastBatchDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *IngestJob) GetMetrics() IngestMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return IngestMetrics{
		Batches:           j.metrics.Batches,
		TracksOK:          j.metrics.TracksOK,
		TracksRejected:    j.metrics.TracksRejected,
		TracksFailed:      j.metrics.TracksFailed,
		CellsCleared:      j.metrics.CellsCleared,
		RegionsLoaded:     j.metrics.RegionsLoaded,
		LastBatchAt:       j.metrics.LastBatchAt,
		LastBatchDuration: j.metrics.LastBatchDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *IngestJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"batches":             m.Batches,
		"tracks_recorded":     m.TracksOK,
		"tracks_rejected":     m.TracksRejected,
		"tracks_failed":       m.TracksFailed,
		"cells_cleared":       m.CellsCleared,
		"regions_loaded":      m.RegionsLoaded,
		"last_batch_at":       m.LastBatchAt,
		"last_batch_duration": m.LastBatchDuration.String(),
	}
}
