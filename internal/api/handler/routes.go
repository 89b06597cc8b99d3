package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/routing"
)

// maxWaypoints caps the number of waypoints per compute request.
const maxWaypoints = 25

// RouteHandler handles routing endpoints.
type RouteHandler struct {
	routes *routing.Service
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(svc *routing.Service) *RouteHandler {
	return &RouteHandler{routes: svc}
}

// ScoreRoute handles POST /v1/routes:score - flow score for a known step sequence.
// Steps may be sent flat or grouped in legs; legs are flattened in order
// after any flat steps.
func (h *RouteHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if input.TotalDistanceMeters < 0 {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "totalDistanceMeters", Message: "must not be negative", Code: "OUT_OF_RANGE"},
		})
		return
	}

	steps := append(input.Steps, routing.FlattenSteps(input.Legs)...)
	response.JSON(w, r, http.StatusOK, h.routes.ScoreSteps(steps, input.TotalDistanceMeters))
}

// ComputeRoutes handles POST /v1/routes:compute - fetch and score route alternatives.
func (h *RouteHandler) ComputeRoutes(w http.ResponseWriter, r *http.Request) {
	var input models.RouteComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if len(input.Waypoints) < 2 || len(input.Waypoints) > maxWaypoints {
		response.BadRequest(w, r, "validation error", []models.FieldError{
			{Field: "waypoints", Message: "must contain between 2 and 25 positions", Code: "OUT_OF_RANGE"},
		})
		return
	}

	path, fieldErrs := models.PositionsToLineString("waypoints", input.Waypoints)
	if input.Alternatives != nil && (*input.Alternatives < 0 || *input.Alternatives > 3) {
		fieldErrs = append(fieldErrs, models.FieldError{
			Field: "alternatives", Message: "must be between 0 and 3", Code: "OUT_OF_RANGE",
		})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "validation error", fieldErrs)
		return
	}

	req := routing.ScoreRequest{
		Directions: routing.DirectionsRequest{
			Waypoints:       path,
			Profile:         routing.RouteProfile(input.Profile),
			MaxAlternatives: 2,
		},
	}
	if input.Alternatives != nil {
		req.Directions.MaxAlternatives = *input.Alternatives
	}
	if input.RegionID != "" {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		req.UserID = userID
		req.RegionID = input.RegionID
	}

	resp, err := h.routes.ScoreRoutes(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, models.RouteComputeResponse{
		GeneratedAt: models.Timestamp(time.Now()),
		Provider:    resp.Provider,
		Routes:      resp.Routes,
	})
}
