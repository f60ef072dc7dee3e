package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestTokenExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})

	got, err := TokenExpiresAt(tok)
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiresAt_NoExpiry(t *testing.T) {
	tok := signedToken(t, jwt.RegisteredClaims{Subject: "device-1"})

	_, err := TokenExpiresAt(tok)
	assert.ErrorIs(t, err, ErrNoExpiry)
}

func TestTokenExpiresAt_Malformed(t *testing.T) {
	_, err := TokenExpiresAt("not-a-token")
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	expired := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
	live := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))})
	noExp := signedToken(t, jwt.RegisteredClaims{Subject: "device-1"})

	assert.True(t, TokenExpired(expired, now))
	assert.False(t, TokenExpired(live, now))
	assert.False(t, TokenExpired(noExp, now))
}
