package security

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-router"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// RequestMetadata is the read-only view of an inbound request that an
// IdentityStore needs in order to resolve inline credentials.
// router.Context satisfies it.
type RequestMetadata interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
}

// IdentityStore verifies presented credentials against the authoritative
// identity records. Concrete backends are selected once at startup, see
// RegisterStore and CreateStore.
type IdentityStore interface {
	// ResolveFromRequest attempts to extract and verify one supported inline
	// credential format from raw request headers. A missing or malformed
	// credential resolves to (nil, nil), never an error.
	ResolveFromRequest(ctx context.Context, req RequestMetadata) (*User, error)

	// Authenticate matches an explicit identifier plus backend specific
	// fields (e.g. "password") against the store. A miss or a secret
	// mismatch returns ErrInvalidCredentials without revealing which part
	// was wrong.
	Authenticate(ctx context.Context, identifier string, fields map[string]string) (*User, error)

	// Invalidate is a best-effort server side cleanup hook. Stores without
	// server side session state implement it as a no-op.
	Invalidate(ctx context.Context, user *User) error
}

// Claims is the decoded view of a verified session token.
type Claims interface {
	Subject() string
	DisplayName() string
	Roles() []string
	Payload() map[string]any
	HasRole(role string) bool
	IssuedAt() time.Time
	Expires() time.Time
}

// TokenService mints, verifies, and decides refresh for session tokens.
type TokenService interface {
	Mint(user *User) (string, error)
	Validate(tokenString string) (Claims, error)
	ShouldRefresh(claims Claims) bool
	RegisterClaimsLoader(loader ClaimsLoader)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (Claims, error)
}

// Manager exposes the session lifecycle to request handlers.
type Manager interface {
	Resolve(c router.Context) (*User, error)
	Login(c router.Context, payload LoginPayload) (*User, string, error)
	Logout(c router.Context) error
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// Config holds the authentication options.
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	// GetTokenExpiration is the token lifetime in seconds.
	GetTokenExpiration() int
	// GetRefreshThreshold is the remaining-lifetime window, in seconds,
	// inside which a valid token is reissued. Must be below the lifetime.
	GetRefreshThreshold() int
	GetCookieName() string
	GetAuthScheme() string
	GetAPIKeyHeader() string
	GetIssuer() string
	GetAudience() []string
	GetStoreName() string
	GetUsers() []StoredUser
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SECURITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SECURITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SECURITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SECURITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
