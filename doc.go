// Package security provides a pluggable authentication layer for web
// services: credential verification against a swappable identity store,
// signed session-token issuance with near-expiry refresh, and per-request
// identity resolution.
//
// Identity stores:
//   - IdentityStore is the backend contract (resolve-from-request,
//     authenticate, invalidate). Backends register by name via
//     RegisterStore and are selected once, at startup, from configuration.
//     The reference MemoryStore loads its users from configuration and
//     verifies salted digests in constant time.
//
// Tokens:
//   - TokenService mints self-contained HS256 tokens carrying subject,
//     roles, and extension claims. Validity is determined purely by
//     signature and expiry; nothing is stored server side. ShouldRefresh
//     reports when a valid token is close enough to expiry to reissue.
//   - ClaimsLoader functions registered on the service contribute extra
//     claims at mint time, in registration order, later entries winning on
//     key collisions.
//
// Sessions:
//   - SessionManagerImpl runs the credential extractors in priority order
//     (cookie token, bearer header, basic auth, API key), resolves the
//     request's User, and transparently reissues near-expiring tokens on
//     the outgoing response. RegisterSessionRoutes exposes login, logout,
//     and who-am-i over JSON.
package security
