// Package cachekey derives the opaque storage keys under which cache entries
// are persisted. An identity key names a token family (authority, resource,
// clientId) independent of user; a full key adds the user and is the true
// uniqueness boundary in the store.
package cachekey

import (
	"encoding/base64"
	"strings"
)

const (
	// LibraryTag partitions the secure store's attribute namespace so this
	// cache never matches or deletes unrelated data in the same physical
	// store.
	LibraryTag = "credcache.v1"

	// versionTag prefixes every identity key. Bump it when the key layout
	// changes so entries written by incompatible layouts never collide.
	versionTag = "CC1"

	delimiter = "|"

	// noResource marks entries that carry no resource (multi-resource and
	// family refresh tokens). It contains "." which the base64 URL alphabet
	// does not, so it can never collide with an encoded resource value.
	noResource = "CC.nores"

	// UnknownUserAccount is the account value stored for entries whose user
	// is absent or blank. Same non-collision argument as noResource.
	UnknownUserAccount = "CC.unknown-user"
)

// encode makes a field delimiter-safe. The encoding is not required to be
// reversed anywhere; it only has to guarantee that distinct field values
// stay distinct after concatenation.
func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// DeriveIdentityKey builds the storage key for a (authority, resource,
// clientId) triple. Entries for different users of the same triple share
// this key. Each field is encoded independently, so a field containing the
// delimiter cannot produce a collision.
func DeriveIdentityKey(authority, resource, clientID string) string {
	res := noResource
	if resource != "" {
		res = encode(resource)
	}
	return versionTag + delimiter + encode(authority) + delimiter + res + delimiter + encode(clientID)
}

// DeriveFullKey extends an identity key with the user's account value.
func DeriveFullKey(identityKey, userID string) string {
	return identityKey + delimiter + AccountForUser(userID)
}

// FullKeyForAccount builds a full key from an already-encoded account value,
// as returned by the store's attribute sets.
func FullKeyForAccount(identityKey, account string) string {
	return identityKey + delimiter + account
}

// AccountForUser returns the encoded account attribute for a user ID. User
// IDs are case-insensitive, so they are normalized before encoding. A blank
// user maps to a fixed sentinel rather than the encoding of "", keeping
// "no user" entries apart from a user whose ID encodes to the empty string.
func AccountForUser(userID string) string {
	normalized := strings.ToLower(strings.TrimSpace(userID))
	if normalized == "" {
		return UnknownUserAccount
	}
	return encode(normalized)
}
