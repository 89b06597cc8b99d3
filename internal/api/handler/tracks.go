package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/coverage"
)

// maxTrackPoints caps a single track upload.
const maxTrackPoints = 20000

// CoverageHandler handles track and coverage endpoints.
type CoverageHandler struct {
	coverage *coverage.Service
}

// NewCoverageHandler creates a new CoverageHandler.
func NewCoverageHandler(svc *coverage.Service) *CoverageHandler {
	return &CoverageHandler{coverage: svc}
}

// RecordTrack handles POST /v1/me/tracks - clear the cells along a travelled path.
func (h *CoverageHandler) RecordTrack(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input models.TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if len(input.Coordinates) == 0 || len(input.Coordinates) > maxTrackPoints {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "coordinates", Message: "must contain between 1 and 20000 positions", Code: "OUT_OF_RANGE"},
		})
		return
	}

	path, fieldErrs := models.PositionsToLineString("coordinates", input.Coordinates)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrs)
		return
	}

	result, err := h.coverage.RecordTrack(r.Context(), userID, path)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := models.TrackResponse{
		CellCount:    len(result.Cells),
		NewlyCleared: result.NewlyCleared,
		Cells:        result.Cells,
	}

	if input.RegionID != "" {
		summary, err := h.coverage.Summary(r.Context(), userID, input.RegionID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp.Coverage = summary
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// GetCoverage handles GET /v1/me/regions/{regionId}/coverage.
func (h *CoverageHandler) GetCoverage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	regionID := chi.URLParam(r, "regionId")
	summary, err := h.coverage.Summary(r.Context(), userID, regionID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if summary.TotalCells == 0 {
		response.NotFound(w, r, "region has no imported cells")
		return
	}

	w.Header().Set("Cache-Control", "private, no-cache")
	response.JSON(w, r, http.StatusOK, summary)
}
