package security

import (
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-router"
)

// Credential is a transient, never persisted proof of identity pulled out
// of an inbound request. It lives for the duration of one authentication
// attempt. Exactly one of Token or Identifier/Secret is populated.
type Credential struct {
	Token      string
	Identifier string
	Secret     string
}

// IsToken reports whether the credential is a bearer token rather than an
// explicit identifier plus secret pair.
func (c *Credential) IsToken() bool {
	return c != nil && c.Token != ""
}

// CredentialExtractor inspects one part of the request and returns a
// credential, or ok=false when nothing usable is present. Malformed input
// (bad base64, wrong header shape) is equivalent to absence, never an
// error, so probing with garbage headers behaves like sending nothing.
type CredentialExtractor func(c router.Context) (*Credential, bool)

// DefaultExtractors assembles the fixed priority order: token extraction
// first (cheapest, most common case), then explicit-credential extractors
// as fallback for initial login.
func DefaultExtractors(cfg Config) []CredentialExtractor {
	return []CredentialExtractor{
		TokenFromCookie(cfg.GetCookieName()),
		TokenFromHeader(router.HeaderAuthorization, cfg.GetAuthScheme()),
		BasicFromHeader(),
		APIKeyFromHeader(cfg.GetAPIKeyHeader()),
	}
}

// TokenFromCookie reads a bearer token from the named cookie.
func TokenFromCookie(name string) CredentialExtractor {
	return func(c router.Context) (*Credential, bool) {
		if name == "" {
			return nil, false
		}
		token := c.Cookies(name)
		if token == "" {
			return nil, false
		}
		return &Credential{Token: token}, true
	}
}

// TokenFromHeader reads a bearer-style token from the given header,
// stripping the auth scheme prefix.
func TokenFromHeader(header, authScheme string) CredentialExtractor {
	return func(c router.Context) (*Credential, bool) {
		raw := c.GetString(header, "")
		if raw == "" {
			return nil, false
		}

		scheme := strings.TrimSpace(authScheme)
		if scheme == "" {
			scheme = "Bearer"
		}

		l := len(scheme)
		if len(raw) > l+1 && strings.EqualFold(raw[:l], scheme) {
			return &Credential{Token: strings.TrimSpace(raw[l:])}, true
		}
		return nil, false
	}
}

// BasicFromHeader decodes a base64 "identifier:secret" payload from the
// Authorization header.
func BasicFromHeader() CredentialExtractor {
	return func(c router.Context) (*Credential, bool) {
		raw := c.GetString(router.HeaderAuthorization, "")
		if raw == "" {
			return nil, false
		}

		const prefix = "Basic "
		if len(raw) <= len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
			return nil, false
		}

		return decodeBasicPayload(raw[len(prefix):])
	}
}

// decodeBasicPayload decodes a base64 "identifier:secret" payload. Decode
// failures are treated as absence.
func decodeBasicPayload(encoded string) (*Credential, bool) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, false
	}
	return splitCredential(string(decoded))
}

// APIKeyFromHeader treats the raw value of the named header as an
// unencoded "identifier:secret" pair.
func APIKeyFromHeader(name string) CredentialExtractor {
	return func(c router.Context) (*Credential, bool) {
		if name == "" {
			return nil, false
		}
		raw := c.GetString(name, "")
		if raw == "" {
			return nil, false
		}
		return splitCredential(raw)
	}
}

// splitCredential splits on the first ':' only; both halves are required.
func splitCredential(raw string) (*Credential, bool) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, false
	}
	return &Credential{Identifier: parts[0], Secret: parts[1]}, true
}
