package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveIdentityKey_Deterministic(t *testing.T) {
	a := DeriveIdentityKey("https://login.example.com/common", "https://graph.example.com", "client-1")
	b := DeriveIdentityKey("https://login.example.com/common", "https://graph.example.com", "client-1")
	assert.Equal(t, a, b)
}

func TestDeriveIdentityKey_DelimiterInFields(t *testing.T) {
	// These two triples concatenate to the same string if fields are not
	// encoded independently.
	a := DeriveIdentityKey("https://a", "b|c", "d")
	b := DeriveIdentityKey("https://a", "b", "c|d")
	assert.NotEqual(t, a, b)
}

func TestDeriveIdentityKey_NoResourceDistinct(t *testing.T) {
	withResource := DeriveIdentityKey("https://a", "CC.nores", "c")
	withoutResource := DeriveIdentityKey("https://a", "", "c")
	assert.NotEqual(t, withResource, withoutResource)
}

func TestDeriveFullKey_UserIndependence(t *testing.T) {
	identity := DeriveIdentityKey("https://a", "r", "c")

	alice := DeriveFullKey(identity, "alice@example.com")
	bob := DeriveFullKey(identity, "bob@example.com")
	assert.NotEqual(t, alice, bob)

	// Same identity key regardless of user.
	assert.Contains(t, alice, identity)
	assert.Contains(t, bob, identity)
}

func TestAccountForUser_Normalization(t *testing.T) {
	assert.Equal(t, AccountForUser("alice@example.com"), AccountForUser("  ALICE@example.COM "))
}

func TestAccountForUser_BlankUserSentinel(t *testing.T) {
	assert.Equal(t, UnknownUserAccount, AccountForUser(""))
	assert.Equal(t, UnknownUserAccount, AccountForUser("   "))

	// A real user ID can never produce the sentinel: "." is outside the
	// base64 URL alphabet.
	assert.NotEqual(t, UnknownUserAccount, AccountForUser("CC.unknown-user"))
}

func TestFullKeyForAccount_MatchesDeriveFullKey(t *testing.T) {
	identity := DeriveIdentityKey("https://a", "r", "c")
	assert.Equal(t,
		DeriveFullKey(identity, "alice@example.com"),
		FullKeyForAccount(identity, AccountForUser("alice@example.com")),
	)
}
