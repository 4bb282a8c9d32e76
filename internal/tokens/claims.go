package tokens

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/galenos/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// AccessClaims is the payload of a short-lived bearer token. Subject holds the
// username.
type AccessClaims struct {
	Role      models.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. ID (jti) is
// always set and is what the revocation store tracks.
type RefreshClaims struct {
	Role      models.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) valid() bool {
	return c.TokenType == TypeAccess && c.Subject != "" && c.Role.Valid()
}

func (c *RefreshClaims) valid() bool {
	return c.TokenType == TypeRefresh && c.Subject != "" && c.ID != "" && c.Role.Valid()
}
