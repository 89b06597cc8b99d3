package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hexfog/hexfog/internal/api/response"
	"github.com/hexfog/hexfog/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	jwt *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{jwt: jwtService}
}

// DevToken handles POST /v1/auth/dev-token - issue a token without an identity provider.
// Only mounted when development auth is enabled.
func (h *AuthHandler) DevToken(w http.ResponseWriter, r *http.Request) {
	var req auth.DevTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = auth.NewUserID()
	}

	tokenResp, err := h.jwt.IssueToken(userID, req.Admin)
	if err != nil {
		response.InternalError(w, r, "failed to issue token")
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}
