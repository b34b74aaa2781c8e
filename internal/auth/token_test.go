package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-at-least-long-enough")

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user-1", ScopeAccess, time.Hour), testSecret, "HS256")
	require.NoError(t, err)

	claims, err := DecodeToken(token, testSecret, "HS256")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, ScopeAccess, claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestTokensAreUniquePerMint(t *testing.T) {
	t.Parallel()

	first, err := EncodeToken(NewClaims("user-1", ScopeRefresh, time.Hour), testSecret, "HS256")
	require.NoError(t, err)
	second, err := EncodeToken(NewClaims("user-1", ScopeRefresh, time.Hour), testSecret, "HS256")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecodeTokenTampered(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user-1", ScopeAccess, time.Hour), testSecret, "HS256")
	require.NoError(t, err)

	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'a' {
		tampered[mid] = 'b'
	} else {
		tampered[mid] = 'a'
	}

	_, err = DecodeToken(string(tampered), testSecret, "HS256")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeTokenExpired(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user-1", ScopeAccess, -time.Minute), testSecret, "HS256")
	require.NoError(t, err)

	_, err = DecodeToken(token, testSecret, "HS256")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeTokenWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user-1", ScopeAccess, time.Hour), testSecret, "HS256")
	require.NoError(t, err)

	_, err = DecodeToken(token, []byte("a-different-secret-entirely"), "HS256")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeTokenWrongAlgorithm(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user-1", ScopeAccess, time.Hour), testSecret, "HS384")
	require.NoError(t, err)

	_, err = DecodeToken(token, testSecret, "HS256")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeTokenGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeToken("not-a-jwt", testSecret, "HS256")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestEmailTokenHasNoScope(t *testing.T) {
	t.Parallel()

	token, err := EncodeToken(NewClaims("user@example.com", "", time.Hour), testSecret, "HS256")
	require.NoError(t, err)

	claims, err := DecodeToken(token, testSecret, "HS256")
	require.NoError(t, err)
	assert.Empty(t, claims.Scope)
	assert.Equal(t, "user@example.com", claims.Subject)
}
