// Package response writes JSON and problem+json bodies for the API handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/hexfog/hexfog/internal/api/middleware"
	"github.com/hexfog/hexfog/internal/api/models"
)

// JSON writes data with the given status. The body is encoded before the
// header is sent so an unencodable value becomes a 500 problem instead of a
// truncated 2xx.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, data)
}

// Accepted writes a 202 with an optional Location pointing at the job.
func Accepted(w http.ResponseWriter, r *http.Request, location string, data any) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	write(w, r, http.StatusAccepted, data)
}

func write(w http.ResponseWriter, r *http.Request, status int, data any) {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			w.Header().Del("Location")
			InternalError(w, r, "failed to encode response")
			return
		}
		body = append(body, '\n')
	}

	h := w.Header()
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set(middleware.RequestIDHeader, id)
	}
	h.Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 validation problem listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(traceID(r), detail))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// InternalError writes a 500. detail must not leak internal error text.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
