package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey       []byte
	tokenExpiration  time.Duration
	refreshThreshold time.Duration
	issuer           string
	audience         jwt.ClaimStrings
	logger           Logger
	loaders          claimsLoaderRegistry
}

// NewTokenService creates a new TokenService instance from the given
// configuration. The signing key and timing options are immutable for the
// lifetime of the service; tests wanting a different refresh window build a
// new service rather than mutating shared state.
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	var aud jwt.ClaimStrings
	if len(cfg.GetAudience()) > 0 {
		aud = make(jwt.ClaimStrings, len(cfg.GetAudience()))
		copy(aud, cfg.GetAudience())
	}

	return &TokenServiceImpl{
		signingKey:       []byte(cfg.GetSigningKey()),
		tokenExpiration:  time.Duration(cfg.GetTokenExpiration()) * time.Second,
		refreshThreshold: time.Duration(cfg.GetRefreshThreshold()) * time.Second,
		issuer:           cfg.GetIssuer(),
		audience:         aud,
		logger:           logger,
	}
}

// WithLogger replaces the service logger.
func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// RegisterClaimsLoader appends a claim loader. Loaders run in registration
// order at mint time; later loaders overwrite colliding keys.
func (ts *TokenServiceImpl) RegisterClaimsLoader(loader ClaimsLoader) {
	ts.loaders.register(loader)
}

// Mint issues a signed session token for the user. Expiry is always
// strictly after issued-at by the configured lifetime.
func (ts *TokenServiceImpl) Mint(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	now := time.Now()

	roles := make([]string, len(user.Roles))
	copy(roles, user.Roles)

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.tokenExpiration)),
		},
		Name:      user.Name,
		RoleList:  roles,
		Extension: ts.loaders.apply(user),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims.
// A bad signature, malformed structure, or past expiry never yields claims.
func (ts *TokenServiceImpl) Validate(tokenString string) (Claims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenMalformed
}

// ShouldRefresh reports whether a valid token is close enough to expiry to
// warrant reissuing. The threshold sits strictly below the lifetime, so a
// freshly minted token is never refreshed.
func (ts *TokenServiceImpl) ShouldRefresh(claims Claims) bool {
	if claims == nil {
		return false
	}

	expires := claims.Expires()
	if expires.IsZero() {
		return false
	}

	return time.Until(expires) <= ts.refreshThreshold
}

var _ TokenService = (*TokenServiceImpl)(nil)
