package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hexfog/hexfog/internal/api/middleware"
)

// serveRequestID runs the middleware and returns the response header and the
// ID the handler saw in its context.
func serveRequestID(t *testing.T, incoming string) (header, inContext string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inContext = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	if incoming != "" {
		req.Header.Set(middleware.RequestIDHeader, incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec.Header().Get(middleware.RequestIDHeader), inContext
}

func TestRequestID_Generated(t *testing.T) {
	header, ctxID := serveRequestID(t, "")

	assert.True(t, strings.HasPrefix(header, "req_"))
	assert.Len(t, header, len("req_")+22)
	assert.Equal(t, header, ctxID)
}

func TestRequestID_Incoming(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		kept     bool
	}{
		{"caller id", "trace-7f3a", true},
		{"max length", strings.Repeat("a", 128), true},
		{"too long", strings.Repeat("a", 129), false},
		{"contains space", "abc def", false},
		{"contains newline", "abc\nlevel=error", false},
		{"non ascii", "zoné", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, ctxID := serveRequestID(t, tt.incoming)

			assert.Equal(t, header, ctxID)
			if tt.kept {
				assert.Equal(t, tt.incoming, header)
			} else {
				assert.NotEqual(t, tt.incoming, header)
				assert.True(t, strings.HasPrefix(header, "req_"))
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id, _ := serveRequestID(t, "")
		_, dup := seen[id]
		assert.False(t, dup, "duplicate request ID %s", id)
		seen[id] = struct{}{}
	}
}
