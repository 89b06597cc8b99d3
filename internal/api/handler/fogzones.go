package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/fogzone"
)

// FogZoneHandler handles fog-zone search.
type FogZoneHandler struct {
	zones *fogzone.Service
}

// NewFogZoneHandler creates a new FogZoneHandler.
func NewFogZoneHandler(svc *fogzone.Service) *FogZoneHandler {
	return &FogZoneHandler{zones: svc}
}

// SearchFogZones handles POST /v1/me/regions/{regionId}/fog-zones:search.
func (h *FogZoneHandler) SearchFogZones(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input models.FogZoneSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	fieldErrs := input.Location.Validate("location")
	if input.MaxZones != nil && (*input.MaxZones < 1 || *input.MaxZones > 100) {
		fieldErrs = append(fieldErrs, models.FieldError{
			Field: "maxZones", Message: "must be between 1 and 100", Code: "OUT_OF_RANGE",
		})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrs)
		return
	}

	q := fogzone.Query{
		UserID:   userID,
		RegionID: chi.URLParam(r, "regionId"),
		Location: input.Location.Point(),
	}
	if input.MaxZones != nil {
		q.MaxZones = *input.MaxZones
	}

	result, err := h.zones.FindZones(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.FogZoneSearchResponse{
		Zones:          result.Zones,
		CandidateCells: result.CandidateCells,
		NearbyCells:    result.NearbyCells,
		NoiseCells:     result.NoiseCells,
		GeneratedAt:    models.Timestamp(time.Now()),
	})
}
