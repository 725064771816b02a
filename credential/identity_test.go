package credential

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestParseIdentityToken_PrefersUPN(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{
		"upn":   "alice@example.com",
		"email": "alice@fallback.example.com",
		"oid":   "0000-1111",
		"name":  "Alice",
		"tid":   "tenant-1",
	})

	info, err := ParseIdentityToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.UserID)
	assert.Equal(t, "Alice", info.DisplayName)
	assert.Equal(t, "tenant-1", info.TenantID)
}

func TestParseIdentityToken_FallsBackToSubject(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "subject-1"})

	info, err := ParseIdentityToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", info.UserID)
}

func TestParseIdentityToken_NoIdentifier(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"name": "No ID"})

	_, err := ParseIdentityToken(raw)
	assert.ErrorIs(t, err, ErrInvalidIdentityToken)
}

func TestParseIdentityToken_Malformed(t *testing.T) {
	_, err := ParseIdentityToken("definitely.not.a-jwt")
	assert.ErrorIs(t, err, ErrInvalidIdentityToken)

	_, err = ParseIdentityToken("")
	assert.ErrorIs(t, err, ErrInvalidIdentityToken)
}
