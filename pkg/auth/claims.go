// Package auth provides JWT-based authentication for traceway-engine.
// It validates tokens issued by the identity service using JWKS endpoints.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure issued by the identity service.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds custom claims for tenant and project context.
type Claims struct {
	jwt.RegisteredClaims
	TenantID  string   `json:"tid,omitempty"`   // Tenant UUID
	ProjectID string   `json:"pid,omitempty"`   // Project UUID
	Email     string   `json:"email,omitempty"` // User email address
	Roles     []string `json:"roles,omitempty"` // User roles within the project
}

// TenantUUID parses the tenant id claim.
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// ProjectUUID parses the project id claim.
func (c *Claims) ProjectUUID() (uuid.UUID, error) {
	return uuid.Parse(c.ProjectID)
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
