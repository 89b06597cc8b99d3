package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/hexfog/hexfog/internal/api/models"
)

const mediaTypeJSON = "application/json"

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that set their own type, such as problem responses, keep it.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if h.Get("Content-Type") == "" {
			h.Set("Content-Type", mediaTypeJSON)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 when a POST, PUT or PATCH body is declared as
// anything but UTF-8 JSON. application/json and +json types such as
// application/geo+json pass; so does a request without a Content-Type.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" && !acceptableJSON(ct) {
				models.NewProblem(models.ProblemTypeValidation, "Unsupported Media Type",
					http.StatusUnsupportedMediaType, GetRequestID(r.Context())).
					WithDetail("Content-Type must be UTF-8 application/json or application/geo+json").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// acceptableJSON reports whether contentType names a JSON media type whose
// charset, if declared, is UTF-8.
func acceptableJSON(contentType string) bool {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if mediaType != mediaTypeJSON && !strings.HasSuffix(mediaType, "+json") {
		return false
	}
	charset, ok := params["charset"]
	return !ok || strings.EqualFold(charset, "utf-8")
}
