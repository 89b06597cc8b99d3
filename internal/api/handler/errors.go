package handler

import (
	"errors"
	"net/http"

	"github.com/hexfog/hexfog/internal/api/middleware"
	"github.com/hexfog/hexfog/internal/api/models"
	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/coverage"
	"github.com/hexfog/hexfog/internal/fogzone"
	"github.com/hexfog/hexfog/internal/grid"
	"github.com/hexfog/hexfog/internal/provider/resilience"
	"github.com/hexfog/hexfog/internal/routing"
)

// retryAfterSeconds is advertised when an upstream failure is transient.
const retryAfterSeconds = "30"

// writeServiceError maps domain errors to problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	traceID := middleware.GetRequestID(r.Context())

	var routeErr *routing.Error
	if errors.As(err, &routeErr) && routeErr.IsRetryable() {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	switch {
	case errors.Is(err, coverage.ErrInvalidTrack),
		errors.Is(err, coverage.ErrInvalidRegion),
		errors.Is(err, fogzone.ErrInvalidLocation),
		errors.Is(err, grid.ErrInvalidPoint),
		errors.Is(err, routing.ErrInvalidCoordinates),
		errors.Is(err, routing.ErrUnsupportedProfile):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, routing.ErrNoRouteFound):
		response.Error(w, r, models.NewUnprocessable(traceID, "no route found between the given waypoints"))
	case errors.Is(err, routing.ErrRateLimitExceeded):
		response.Error(w, r, models.NewBadGateway(traceID, "routing provider rate limit exceeded"))
	case errors.Is(err, routing.ErrProviderUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, coverage.ErrGapProvider):
		response.ServiceUnavailable(w, r, "a dependency is temporarily unavailable")
	default:
		response.InternalError(w, r, "unexpected error")
	}
}

// requireUser writes a 401 and returns false when the request is unauthenticated.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return "", false
	}
	return userID, true
}
