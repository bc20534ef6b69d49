package security

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
)

// Request-local cache keys. Resolution happens at most once per request;
// repeated Resolve calls observe the same User.
const (
	localsUserKey   = "security:user"
	localsClaimsKey = "security:claims"
	localsTokenKey  = "security:token"
)

// SessionManagerImpl orchestrates extractors, the identity store, and the
// token service on each request. It holds no per-session state: a session
// is recomputed on every request from the presented credential or token.
type SessionManagerImpl struct {
	store          IdentityStore
	tokens         TokenService
	cfg            Config
	extractors     []CredentialExtractor
	cookieDuration time.Duration
	logger         Logger
	sink           ActivitySink
}

// NewSessionManager returns a session manager over the given store and
// configuration, with the default token service and extractor chain.
func NewSessionManager(store IdentityStore, cfg Config) *SessionManagerImpl {
	cookieDuration := time.Duration(DefaultTokenExpiration) * time.Second
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Second
	}

	return &SessionManagerImpl{
		store:          store,
		tokens:         NewTokenService(cfg, defLogger{}),
		cfg:            cfg,
		extractors:     DefaultExtractors(cfg),
		cookieDuration: cookieDuration,
		logger:         defLogger{},
		sink:           noopActivitySink{},
	}
}

func (m *SessionManagerImpl) WithLogger(logger Logger) *SessionManagerImpl {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithTokenService replaces the token service, e.g. with one built from a
// configuration carrying a different refresh window.
func (m *SessionManagerImpl) WithTokenService(tokens TokenService) *SessionManagerImpl {
	if tokens != nil {
		m.tokens = tokens
	}
	return m
}

// WithExtractors replaces the credential extractor chain. Order is
// priority: the first extractor producing a usable credential wins.
func (m *SessionManagerImpl) WithExtractors(extractors ...CredentialExtractor) *SessionManagerImpl {
	if len(extractors) > 0 {
		m.extractors = extractors
	}
	return m
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (m *SessionManagerImpl) WithActivitySink(sink ActivitySink) *SessionManagerImpl {
	m.sink = normalizeActivitySink(sink)
	return m
}

// TokenService returns the TokenService instance used by this manager.
func (m *SessionManagerImpl) TokenService() TokenService {
	return m.tokens
}

// Resolve runs the extractor chain in priority order and returns the
// request's User, or (nil, nil) for an anonymous request. Token shaped
// credentials are verified by the token service; explicit credentials are
// delegated to the store. Invalid tokens and rejected credentials resolve
// to anonymous, so probing behaves exactly like sending nothing. Only a
// store failure surfaces as an error.
func (m *SessionManagerImpl) Resolve(c router.Context) (*User, error) {
	if user, ok := m.CurrentUser(c); ok {
		return user, nil
	}

	for _, extract := range m.extractors {
		cred, ok := extract(c)
		if !ok {
			continue
		}

		if cred.IsToken() {
			claims, err := m.tokens.Validate(cred.Token)
			if err != nil {
				m.logger.Debug("Resolve token rejected: %v", err)
				continue
			}

			user := UserFromClaims(claims)
			m.cacheResolution(c, user, claims, cred.Token)
			m.refreshIfExpiring(c, user, claims)
			return user, nil
		}

		user, err := m.store.Authenticate(c.Context(), cred.Identifier, map[string]string{
			PasswordFieldName: cred.Secret,
		})
		if err != nil {
			if IsAuthError(err) {
				m.logger.Debug("Resolve credential rejected for %s", cred.Identifier)
				continue
			}
			return nil, WrapStoreError(err)
		}

		m.cacheResolution(c, user, nil, "")
		return user, nil
	}

	// Stores may support inline formats beyond the default chain.
	user, err := m.store.ResolveFromRequest(c.Context(), c)
	if err != nil {
		return nil, WrapStoreError(err)
	}
	if user != nil {
		m.cacheResolution(c, user, nil, "")
	}
	return user, nil
}

// Login verifies explicit credentials against the store and, on success,
// mints a fresh token and sets it as the response session cookie. Login
// never refreshes: it always mints.
func (m *SessionManagerImpl) Login(c router.Context, payload LoginPayload) (*User, string, error) {
	ctx := c.Context()
	identifier := payload.GetIdentifier()

	user, err := m.store.Authenticate(ctx, identifier, map[string]string{
		PasswordFieldName: payload.GetPassword(),
	})
	if err != nil {
		if IsAuthError(err) {
			m.logger.Info("Login rejected for %s", identifier)
			m.emit(ctx, ActivityEventLoginFailure, "", map[string]any{
				"identifier": identifier,
			})
			return nil, "", ErrInvalidCredentials
		}
		m.logger.Error("Login store error: %v", err)
		return nil, "", WrapStoreError(err)
	}

	token, err := m.tokens.Mint(user)
	if err != nil {
		m.logger.Error("Login mint error: %v", err)
		return nil, "", err
	}

	m.setCookieToken(c, token, m.cookieDuration)
	m.cacheResolution(c, user, nil, token)

	m.emit(ctx, ActivityEventLoginSuccess, user.ID, map[string]any{
		"identifier": identifier,
	})

	return user, token, nil
}

// Logout invalidates server side state best-effort and arranges removal of
// the session token from the client. It always succeeds.
func (m *SessionManagerImpl) Logout(c router.Context) error {
	if user, err := m.Resolve(c); err == nil && user != nil {
		if err := m.store.Invalidate(c.Context(), user); err != nil {
			m.logger.Warn("Logout store invalidate error: %v", err)
		}
		m.emit(c.Context(), ActivityEventLogout, user.ID, nil)
	}

	m.cookieDel(c, m.cfg.GetCookieName())
	return nil
}

// CurrentUser returns the user already resolved for this request, if any.
func (m *SessionManagerImpl) CurrentUser(c router.Context) (*User, bool) {
	raw := c.Locals(localsUserKey)
	if raw == nil {
		return nil, false
	}
	user, ok := raw.(*User)
	return user, ok
}

// CurrentClaims returns the verified claims behind the resolved user, when
// the request authenticated via a token.
func (m *SessionManagerImpl) CurrentClaims(c router.Context) (Claims, bool) {
	raw := c.Locals(localsClaimsKey)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(Claims)
	return claims, ok
}

// CurrentToken returns the raw token the request authenticated with.
func (m *SessionManagerImpl) CurrentToken(c router.Context) (string, bool) {
	raw := c.Locals(localsTokenKey)
	if raw == nil {
		return "", false
	}
	token, ok := raw.(string)
	return token, ok && token != ""
}

// refreshIfExpiring mints a replacement for a near-expiring token and sets
// it on the outgoing response. The caller observes the same User; only the
// client-held token changes. Expired tokens never reach this path.
func (m *SessionManagerImpl) refreshIfExpiring(c router.Context, user *User, claims Claims) {
	if !m.tokens.ShouldRefresh(claims) {
		return
	}

	token, err := m.tokens.Mint(user)
	if err != nil {
		m.logger.Error("Token refresh mint error: %v", err)
		return
	}

	m.setCookieToken(c, token, m.cookieDuration)
	m.emit(c.Context(), ActivityEventTokenRefresh, user.ID, nil)
}

func (m *SessionManagerImpl) cacheResolution(c router.Context, user *User, claims Claims, token string) {
	c.Locals(localsUserKey, user)
	if claims != nil {
		c.Locals(localsClaimsKey, claims)
	}
	if token != "" {
		c.Locals(localsTokenKey, token)
	}

	stdCtx := WithContext(c.Context(), user)
	if claims != nil {
		stdCtx = WithClaimsContext(stdCtx, claims)
	}
	c.SetContext(stdCtx)
}

func (m *SessionManagerImpl) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     m.cfg.GetCookieName(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (m *SessionManagerImpl) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (m *SessionManagerImpl) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(m.sink)
	event := ActivityEvent{
		EventType: eventType,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}

var _ Manager = (*SessionManagerImpl)(nil)
