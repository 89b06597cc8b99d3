// Package auth issues and validates the access tokens that identify explorers.
package auth

import "github.com/google/uuid"

// TokenResponse represents the response after a token is issued.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// UserID is the subject the token was issued for.
	UserID string `json:"userId"`
}

// DevTokenRequest is the request for a development token.
type DevTokenRequest struct {
	// UserID is optional; a new ID is generated when empty.
	UserID string `json:"userId,omitempty"`
	// Admin requests the admin claim.
	Admin bool `json:"admin,omitempty"`
}

// NewUserID generates an explorer ID.
func NewUserID() string {
	return "usr_" + uuid.New().String()[:22]
}
