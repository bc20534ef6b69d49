package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the concrete claim set carried by session tokens:
// registered claims plus role claims and the extension payload contributed
// by registered claim loaders.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name      string         `json:"name,omitempty"`
	RoleList  []string       `json:"roles,omitempty"`
	Extension map[string]any `json:"payload,omitempty"`
}

var _ Claims = (*SessionClaims)(nil)

// Subject returns the subject claim, the stable user identifier.
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// DisplayName returns the display name minted into the token so that a
// token-resolved identity keeps its name without a store round trip.
func (c *SessionClaims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Subject()
}

// Roles returns the role claims.
func (c *SessionClaims) Roles() []string {
	return c.RoleList
}

// Payload returns the extension claims contributed at mint time.
func (c *SessionClaims) Payload() map[string]any {
	return c.Extension
}

// HasRole checks if the claims carry a specific role.
func (c *SessionClaims) HasRole(role string) bool {
	for _, r := range c.RoleList {
		if r == role {
			return true
		}
	}
	return false
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// UserFromClaims maps verified token claims back onto the request-facing
// User view. The store is not consulted, token validity alone vouches for
// the identity.
func UserFromClaims(claims Claims) *User {
	if claims == nil {
		return nil
	}

	roles := make([]string, len(claims.Roles()))
	copy(roles, claims.Roles())

	return &User{
		ID:    claims.Subject(),
		Name:  claims.DisplayName(),
		Roles: roles,
	}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
