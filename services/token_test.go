package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := IssueToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, 42, userID)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := IssueToken(42)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "another-secret")
	_, err = VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenExpired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRES_IN", "1ns")

	token, err := IssueToken(7)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenGarbage(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenTTL(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "")
	assert.Equal(t, defaultTokenTTL, TokenTTL())

	t.Setenv("JWT_EXPIRES_IN", "24h")
	assert.Equal(t, 24*time.Hour, TokenTTL())

	// Invalid and non-positive values fall back to the default.
	t.Setenv("JWT_EXPIRES_IN", "soon")
	assert.Equal(t, defaultTokenTTL, TokenTTL())

	t.Setenv("JWT_EXPIRES_IN", "-1h")
	assert.Equal(t, defaultTokenTTL, TokenTTL())
}
