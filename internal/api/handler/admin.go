package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/grid"
)

// maxRegionBytes caps a GeoJSON region upload.
const maxRegionBytes = 16 << 20

// RegionPublisher enqueues region imports for the worker.
type RegionPublisher interface {
	PublishRegionImport(ctx context.Context, regionID string, geojson []byte) (string, error)
}

// AdminHandler handles region management endpoints.
type AdminHandler struct {
	coverage  *coverage.Service
	publisher RegionPublisher
}

// NewAdminHandler creates a new AdminHandler. publisher may be nil, in which
// case every import runs inline.
func NewAdminHandler(svc *coverage.Service, publisher RegionPublisher) *AdminHandler {
	return &AdminHandler{coverage: svc, publisher: publisher}
}

// ImportRegion handles POST /v1/admin/regions/{regionId}:import with a GeoJSON body.
// With ?async=true the import is queued for the worker and 202 is returned.
func (h *AdminHandler) ImportRegion(w http.ResponseWriter, r *http.Request) {
	regionID := strings.TrimSpace(chi.URLParam(r, "regionId"))
	if regionID == "" {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "regionId", Message: "region id is required", Code: "REQUIRED"},
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRegionBytes+1))
	if err != nil {
		response.BadRequest(w, r, "unable to read body", nil)
		return
	}
	if len(body) > maxRegionBytes {
		response.BadRequest(w, r, "region geometry exceeds 16 MiB", nil)
		return
	}

	polys, err := grid.RegionFromGeoJSON(body)
	if err != nil {
		response.BadRequest(w, r, "body must be a GeoJSON Polygon, MultiPolygon, Feature or FeatureCollection", nil)
		return
	}

	if r.URL.Query().Get("async") == "true" && h.publisher != nil {
		messageID, err := h.publisher.PublishRegionImport(r.Context(), regionID, body)
		if err != nil {
			response.ServiceUnavailable(w, r, "unable to queue region import")
			return
		}
		response.Accepted(w, r, "", models.RegionImportQueued{RegionID: regionID, MessageID: messageID})
		return
	}

	result, err := h.coverage.ImportRegion(r.Context(), regionID, polys)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.RegionImportResponse{
		RegionID:  result.RegionID,
		CellCount: result.CellCount,
		Inserted:  result.Inserted,
	})
}
