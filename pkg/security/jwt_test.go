package security

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, cfg *JWTConfig) *JWTManager {
	t.Helper()
	if cfg == nil {
		cfg = &JWTConfig{}
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = "observer-secret"
	}
	m, err := NewJWTManager(cfg)
	require.NoError(t, err)
	return m
}

func TestJWT_IssueAndValidate(t *testing.T) {
	m := newManager(t, &JWTConfig{Issuer: "combat"})

	token, err := m.Issue("viewer-1", "forest")
	require.NoError(t, err)

	claims, err := m.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "viewer-1", claims.Subject)
	assert.True(t, claims.CanObserve("forest"))
	assert.False(t, claims.CanObserve("cave"))

	_, err = m.Authorize(token, "cave")
	assert.ErrorIs(t, err, ErrZoneForbidden)

	ctx := SetClaimsToContext(context.Background(), claims)
	got, ok := GetClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)
}

func TestJWT_Errors(t *testing.T) {
	m := newManager(t, nil)

	t.Run("missing", func(t *testing.T) {
		_, err := m.ValidateToken("Bearer ")
		assert.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := m.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newManager(t, &JWTConfig{SecretKey: "other"})
		token, err := other.Issue("x")
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("observer-secret"))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}}).SignedString([]byte("observer-secret"))
		require.NoError(t, err)
		_, err = m.ValidateToken(token)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})
}

func TestJWT_Config(t *testing.T) {
	_, err := NewJWTManager(&JWTConfig{})
	assert.ErrorIs(t, err, ErrSecretKeyEmpty)

	_, err = NewJWTManager(&JWTConfig{SecretKey: "k", Algorithm: "RS256"})
	assert.ErrorIs(t, err, ErrAlgorithmInvalid)
}
