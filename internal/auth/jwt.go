package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenExpiry is the default access token lifetime.
const AccessTokenExpiry = time.Hour

// clockSkew is tolerated on exp, nbf and iat.
const clockSkew = 30 * time.Second

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSubject     = errors.New("user id is required")
)

// JWTClaims are the claims of an access token. Coverage and fog-zone queries
// are scoped to UserID; Admin allows region imports.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Admin  bool   `json:"adm,omitempty"`
}

// Validate runs after the registered-claim checks and rejects tokens whose
// uid does not match their subject.
func (c JWTClaims) Validate() error {
	if c.UserID == "" || c.UserID != c.Subject {
		return errors.New("uid must match sub")
	}
	return nil
}

// JWTConfig configures token signing. SigningKey is an HS256 secret.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	// Expiry overrides AccessTokenExpiry when set.
	Expiry time.Duration
	// Clock replaces time.Now.
	Clock func() time.Time
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	key    []byte
	issuer string
	aud    string
	expiry time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTService creates a token service.
func NewJWTService(cfg JWTConfig) *JWTService {
	s := &JWTService{
		key:    []byte(cfg.SigningKey),
		issuer: cfg.Issuer,
		aud:    cfg.Audience,
		expiry: cfg.Expiry,
		now:    cfg.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.expiry <= 0 {
		s.expiry = AccessTokenExpiry
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// GenerateAccessToken signs a token for userID and returns it with its expiry.
func (s *JWTService) GenerateAccessToken(userID string, admin bool) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMissingSubject
	}

	now := s.now()
	exp := now.Add(s.expiry)
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.aud},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Admin:  admin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp, nil
}

// IssueToken wraps GenerateAccessToken in the API token response.
func (s *JWTService) IssueToken(userID string, admin bool) (*TokenResponse, error) {
	token, exp, err := s.GenerateAccessToken(userID, admin)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(exp.Sub(s.now()).Round(time.Second).Seconds()),
		UserID:      userID,
	}, nil
}

// ValidateAccessToken verifies the signature and claims of tokenString.
// Expired tokens return ErrAccessTokenExpired; every other failure wraps
// ErrInvalidAccessToken.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	return claims, nil
}
