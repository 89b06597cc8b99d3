package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/grid"
)

// ErrPermanent marks messages that will never succeed and must not be redelivered.
var ErrPermanent = errors.New("permanent message failure")

// Dispatcher routes decoded ingest messages to the ingest job.
type Dispatcher struct {
	job    *IngestJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *IngestJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle processes one raw message. Errors wrapping ErrPermanent should be
// acked; any other error should be retried.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: parsing message: %v", ErrPermanent, err)
	}

	switch msg.JobType {
	case JobTrackRecorded:
		return d.handleTracks(ctx, msg)
	case JobRegionImport:
		return d.handleRegionImport(ctx, msg)
	default:
		return fmt.Errorf("%w: unknown job type %q", ErrPermanent, msg.JobType)
	}
}

func (d *Dispatcher) handleTracks(ctx context.Context, msg Message) error {
	tracks := msg.AllTracks()
	if len(tracks) == 0 {
		return fmt.Errorf("%w: message carries no tracks", ErrPermanent)
	}

	result := d.job.Run(ctx, tracks)
	for _, e := range result.Errors {
		d.logger.Warn().
			Str("batch_id", result.BatchID).
			Int("index", e.Index).
			Str("user_id", e.UserID).
			Str("error", e.Error).
			Msg("track not recorded")
	}

	// Recording is idempotent, so redelivering the whole batch is safe.
	if result.Retryable() {
		return fmt.Errorf("%d of %d tracks failed", result.Failed, result.Tracks)
	}
	return nil
}

func (d *Dispatcher) handleRegionImport(ctx context.Context, msg Message) error {
	if msg.RegionID == "" {
		return fmt.Errorf("%w: region_id is required", ErrPermanent)
	}

	polys, err := grid.RegionFromGeoJSON(msg.GeoJSON)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	res, err := d.job.ImportRegion(ctx, msg.RegionID, polys)
	if err != nil {
		if errors.Is(err, coverage.ErrInvalidRegion) {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}
		return err
	}

	d.logger.Info().
		Str("region_id", res.RegionID).
		Int("cells", res.CellCount).
		Int("inserted", res.Inserted).
		Msg("region imported")
	return nil
}
