package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	require.NoError(t, err)
	ctx := context.Background()
	iat := time.Now().Add(-time.Minute)

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{
			"sub":   "did:key:abc",
			"email": "abc@example.test",
			"iat":   iat.Unix(),
		})
		id, err := v.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "did:key:abc", id.Issuer)
		assert.Equal(t, "abc@example.test", id.Email)
		assert.Equal(t, iat.Unix(), id.IssuedAt)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": "did:key:abc", "iat": iat.Unix()})
		_, err := v.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{"iat": iat.Unix()})
		_, err := v.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("missing iat", func(t *testing.T) {
		token := signToken(t, "test-secret", jwt.MapClaims{"sub": "did:key:abc"})
		_, err := v.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.Verify(ctx, "not-a-jwt")
		assert.Error(t, err)
	})
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("")
	assert.Error(t, err)
}
