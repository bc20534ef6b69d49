package security

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes attached to structured errors so API clients can branch
// without parsing messages.
const (
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
	TextCodeSessionNotFound  = "SESSION_NOT_FOUND"
)

// ErrInvalidCredentials covers both unknown identifiers and wrong secrets.
// The message is deliberately shared so callers cannot probe which part
// was wrong.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired marks a token whose expiry has passed. Expired tokens are
// never refreshed, they force a re-login.
var ErrTokenExpired = errors.New("session token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed marks a token that failed signature verification or
// could not be decoded.
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrStoreUnavailable marks a backend failure, distinct from unauthorized
// so clients do not mistake an outage for bad credentials.
var ErrStoreUnavailable = errors.New("identity store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeStoreUnavailable).
	WithCode(errors.CodeInternal)

// ErrUnableToFindSession is returned when a request carries no session.
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// IsAuthError reports whether the error maps to an unauthorized outcome at
// the HTTP boundary.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryAuth
	}
	return false
}

// WrapStoreError normalizes unexpected store failures into
// ErrStoreUnavailable while letting typed auth errors through untouched.
func WrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return err
	}
	return errors.Wrap(err, ErrStoreUnavailable.Category, ErrStoreUnavailable.Message).
		WithTextCode(ErrStoreUnavailable.TextCode).
		WithCode(errors.CodeInternal)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
