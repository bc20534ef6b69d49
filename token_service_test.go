package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	security "github.com/goliatone/go-security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_MintAndValidate(t *testing.T) {
	ts := security.NewTokenService(testOptions(), nil)

	user := &security.User{
		ID:    "admin",
		Name:  "admin",
		Roles: []string{"admin", "ops"},
	}

	token, err := ts.Mint(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "admin", claims.Subject())
	assert.Equal(t, "admin", claims.DisplayName())
	assert.Equal(t, []string{"admin", "ops"}, claims.Roles())
	assert.True(t, claims.HasRole("ops"))
	assert.False(t, claims.HasRole("root"))

	assert.False(t, claims.IssuedAt().IsZero())
	assert.True(t, claims.Expires().After(claims.IssuedAt()), "expiry must be strictly after issued-at")

	lifetime := time.Duration(security.DefaultTokenExpiration) * time.Second
	assert.WithinDuration(t, claims.IssuedAt().Add(lifetime), claims.Expires(), time.Second)
}

func TestTokenService_MintNilUser(t *testing.T) {
	ts := security.NewTokenService(testOptions(), nil)

	token, err := ts.Mint(nil)
	assert.Error(t, err)
	assert.Empty(t, token)
}

func TestTokenService_UniqueTokenIDs(t *testing.T) {
	ts := security.NewTokenService(testOptions(), nil)
	user := &security.User{ID: "admin"}

	a, err := ts.Mint(user)
	require.NoError(t, err)
	b, err := ts.Mint(user)
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "each minted token should carry a fresh jti")
}

func TestTokenService_ValidateRejections(t *testing.T) {
	cfg := testOptions()
	ts := security.NewTokenService(cfg, nil)

	t.Run("expired token", func(t *testing.T) {
		claims := &security.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "admin",
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := ts.SignClaims(claims)
		require.NoError(t, err)

		got, err := ts.Validate(token)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, security.IsTokenExpiredError(err))
		assert.True(t, security.IsAuthError(err))
	})

	t.Run("bad signature", func(t *testing.T) {
		other := security.NewTokenService((&security.Options{
			SigningKey: "a-different-secret",
		}).WithDefaults(), nil)

		token, err := other.Mint(&security.User{ID: "admin"})
		require.NoError(t, err)

		got, err := ts.Validate(token)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, security.IsMalformedError(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		got, err := ts.Validate("not.a.token")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, security.IsMalformedError(err))
	})

	t.Run("wrong signing method", func(t *testing.T) {
		// alg=none tokens must never validate.
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		got, err := ts.Validate(token)
		require.Error(t, err)
		assert.Nil(t, got)
	})
}

func TestTokenService_IssuerAndAudience(t *testing.T) {
	cfg := (&security.Options{
		SigningKey: "test-signing-secret",
		Issuer:     "security-test",
		Audience:   []string{"api"},
	}).WithDefaults()

	ts := security.NewTokenService(cfg, nil)

	token, err := ts.Mint(&security.User{ID: "admin"})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject())

	// A token minted without the expected issuer is rejected.
	plain := security.NewTokenService(testOptions(), nil)
	foreign, err := plain.Mint(&security.User{ID: "admin"})
	require.NoError(t, err)

	_, err = ts.Validate(foreign)
	assert.Error(t, err)
}

func TestTokenService_ShouldRefresh(t *testing.T) {
	t.Run("fresh token is never refreshed", func(t *testing.T) {
		ts := security.NewTokenService(testOptions(), nil)

		token, err := ts.Mint(&security.User{ID: "admin"})
		require.NoError(t, err)
		claims, err := ts.Validate(token)
		require.NoError(t, err)

		assert.False(t, ts.ShouldRefresh(claims))
	})

	t.Run("token within the raised threshold", func(t *testing.T) {
		// Raising the threshold above the lifetime makes every valid
		// token eligible for refresh.
		cfg := &security.Options{
			SigningKey:       "test-signing-secret",
			TokenExpiration:  60,
			RefreshThreshold: 120,
		}
		ts := security.NewTokenService(cfg, nil)

		token, err := ts.Mint(&security.User{ID: "admin"})
		require.NoError(t, err)
		claims, err := ts.Validate(token)
		require.NoError(t, err)

		assert.True(t, ts.ShouldRefresh(claims))
	})

	t.Run("nil claims", func(t *testing.T) {
		ts := security.NewTokenService(testOptions(), nil)
		assert.False(t, ts.ShouldRefresh(nil))
	})
}

func TestTokenService_ClaimsLoaders(t *testing.T) {
	ts := security.NewTokenService(testOptions(), nil)

	ts.RegisterClaimsLoader(func(user *security.User) map[string]any {
		return map[string]any{
			"tenant": "acme",
			"plan":   "free",
		}
	})
	ts.RegisterClaimsLoader(func(user *security.User) map[string]any {
		// later loaders overwrite colliding keys
		return map[string]any{
			"plan": "pro",
			"user": user.ID,
		}
	})

	token, err := ts.Mint(&security.User{ID: "bob"})
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	payload := claims.Payload()
	require.NotNil(t, payload)
	assert.Equal(t, "acme", payload["tenant"])
	assert.Equal(t, "pro", payload["plan"])
	assert.Equal(t, "bob", payload["user"])
}
