// Package auth verifies the bearer tokens carrying the caller identity.
// Tokens are normally minted elsewhere; GenerateToken exists for the
// operator tooling and tests.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for the JWT bearer tokens the API accepts.
type JWTService interface {
	// GenerateToken creates a signed JWT carrying the principal identity.
	// Returns the token string or an error if signing fails.
	GenerateToken(ctx context.Context, userID uuid.UUID, admin bool) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns the claims containing the principal identity if the token is
	// valid, or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the verified identity extracted from a token.
type Claims struct {
	// UserID is the unique identifier of the principal the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// Admin marks an elevated principal.
	Admin bool `json:"adm,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
