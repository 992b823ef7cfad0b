package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/derushio/d-next-ddd-example-sub002/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "signin-guard"

// TokenPair is the session issued after a successful sign-in
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenManager issues HS256 sessions and validates admin bearer tokens
type TokenManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	parser        *jwt.Parser
	now           func() time.Time
}

func NewTokenManager(secret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(5*time.Second),
		),
		now: time.Now,
	}
}

// IssueSession signs an access and a refresh token for user
func (tm *TokenManager) IssueSession(user *models.User) (*TokenPair, error) {
	now := tm.now()

	access, err := tm.sign(user, models.TokenTypeAccess, now, tm.accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := tm.sign(user, models.TokenTypeRefresh, now, tm.refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(tm.accessExpiry),
	}, nil
}

func (tm *TokenManager) sign(user *models.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := &models.TokenClaims{
		Type:   tokenType,
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

// ValidateToken verifies signature, issuer and lifetime and returns the claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	_, err := tm.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return tm.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: token expired", models.ErrUnauthorized)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	case claims.Type == "" || claims.UserID == "":
		return nil, fmt.Errorf("%w: incomplete claims", models.ErrUnauthorized)
	}
	return claims, nil
}
