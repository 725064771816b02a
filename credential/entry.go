// Package credential defines the cache entry data model: one record per
// cached token, in one of four shapes, with the attribute presence rules of
// each shape enforced when the entry is built.
package credential

import (
	"fmt"
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/stephnangue/credcache/cachekey"
)

// TokenKind identifies the shape of a cache entry.
type TokenKind int

const (
	// AccessToken entries carry an access token scoped to one resource,
	// with an expiry.
	AccessToken TokenKind = iota

	// RefreshToken entries carry a refresh token scoped to one resource.
	RefreshToken

	// MultiResourceRefreshToken entries carry a refresh token valid across
	// resources of one client.
	MultiResourceRefreshToken

	// FamilyRefreshToken entries carry a refresh token shared by a family
	// of clients, keyed by family ID instead of client ID.
	FamilyRefreshToken
)

// String returns the canonical name of the token kind.
func (k TokenKind) String() string {
	switch k {
	case AccessToken:
		return "access_token"
	case RefreshToken:
		return "refresh_token"
	case MultiResourceRefreshToken:
		return "multi_resource_refresh_token"
	case FamilyRefreshToken:
		return "family_refresh_token"
	default:
		return "unknown"
	}
}

// familyClientPrefix derives a client ID from a family ID so family entries
// key the same way as client entries without ever colliding with a real
// client registration.
const familyClientPrefix = "foci-"

// DefaultAccessTokenLifetime is assumed when an access token arrives without
// an expiry.
const DefaultAccessTokenLifetime = time.Hour

// CacheEntry is one cached token record.
type CacheEntry struct {
	Kind      TokenKind
	Authority string
	Resource  string
	ClientID  string
	FamilyID  string

	// UserInfo is derived from an identity token when one was present.
	// Nil means the user is unknown.
	UserInfo *UserInfo

	AccessToken  string
	RefreshToken string

	// ExpiresOn is set only on access-token entries.
	ExpiresOn time.Time
}

// NewAccessTokenEntry builds an access-token entry. A zero expiresOn gets
// the default lifetime from now.
func NewAccessTokenEntry(authority, resource, clientID string, user *UserInfo, accessToken string, expiresOn time.Time) (*CacheEntry, error) {
	if expiresOn.IsZero() {
		expiresOn = time.Now().Add(DefaultAccessTokenLifetime)
	}
	e := &CacheEntry{
		Kind:        AccessToken,
		Authority:   authority,
		Resource:    resource,
		ClientID:    clientID,
		UserInfo:    user,
		AccessToken: accessToken,
		ExpiresOn:   expiresOn.UTC().Truncate(time.Second),
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewRefreshTokenEntry builds a resource-scoped refresh-token entry.
func NewRefreshTokenEntry(authority, resource, clientID string, user *UserInfo, refreshToken string) (*CacheEntry, error) {
	e := &CacheEntry{
		Kind:         RefreshToken,
		Authority:    authority,
		Resource:     resource,
		ClientID:     clientID,
		UserInfo:     user,
		RefreshToken: refreshToken,
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewMultiResourceRefreshTokenEntry builds a refresh-token entry valid
// across all resources of one client.
func NewMultiResourceRefreshTokenEntry(authority, clientID string, user *UserInfo, refreshToken string) (*CacheEntry, error) {
	e := &CacheEntry{
		Kind:         MultiResourceRefreshToken,
		Authority:    authority,
		ClientID:     clientID,
		UserInfo:     user,
		RefreshToken: refreshToken,
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewFamilyRefreshTokenEntry builds a family refresh-token entry. The client
// ID is derived from the family ID.
func NewFamilyRefreshTokenEntry(authority, familyID string, user *UserInfo, refreshToken string) (*CacheEntry, error) {
	e := &CacheEntry{
		Kind:         FamilyRefreshToken,
		Authority:    authority,
		ClientID:     familyClientPrefix + familyID,
		FamilyID:     familyID,
		UserInfo:     user,
		RefreshToken: refreshToken,
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// validate enforces the per-kind attribute presence rules. It is called by
// every constructor and again when a persisted record is decoded, so a
// record corrupted at rest cannot re-enter the cache with an illegal shape.
func (e *CacheEntry) validate() error {
	if e.Authority == "" {
		return fmt.Errorf("%w: authority is required", ErrInvalidEntry)
	}
	if e.ClientID == "" {
		return fmt.Errorf("%w: client ID is required", ErrInvalidEntry)
	}

	switch e.Kind {
	case AccessToken:
		if e.Resource == "" {
			return fmt.Errorf("%w: %s requires a resource", ErrInvalidEntry, e.Kind)
		}
		if e.AccessToken == "" {
			return fmt.Errorf("%w: %s requires an access token", ErrInvalidEntry, e.Kind)
		}
		if e.RefreshToken != "" {
			return fmt.Errorf("%w: %s must not carry a refresh token", ErrInvalidEntry, e.Kind)
		}
		if e.FamilyID != "" {
			return fmt.Errorf("%w: %s must not carry a family ID", ErrInvalidEntry, e.Kind)
		}
		if e.ExpiresOn.IsZero() {
			return fmt.Errorf("%w: %s requires an expiry", ErrInvalidEntry, e.Kind)
		}
	case RefreshToken:
		if e.Resource == "" {
			return fmt.Errorf("%w: %s requires a resource", ErrInvalidEntry, e.Kind)
		}
		if err := e.validateRefreshShape(); err != nil {
			return err
		}
		if e.FamilyID != "" {
			return fmt.Errorf("%w: %s must not carry a family ID", ErrInvalidEntry, e.Kind)
		}
	case MultiResourceRefreshToken:
		if e.Resource != "" {
			return fmt.Errorf("%w: %s must not carry a resource", ErrInvalidEntry, e.Kind)
		}
		if err := e.validateRefreshShape(); err != nil {
			return err
		}
		if e.FamilyID != "" {
			return fmt.Errorf("%w: %s must not carry a family ID", ErrInvalidEntry, e.Kind)
		}
	case FamilyRefreshToken:
		if e.Resource != "" {
			return fmt.Errorf("%w: %s must not carry a resource", ErrInvalidEntry, e.Kind)
		}
		if e.FamilyID == "" {
			return fmt.Errorf("%w: %s requires a family ID", ErrInvalidEntry, e.Kind)
		}
		if e.ClientID != familyClientPrefix+e.FamilyID {
			return fmt.Errorf("%w: %s client ID must be derived from the family ID", ErrInvalidEntry, e.Kind)
		}
		if err := e.validateRefreshShape(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown token kind %d", ErrInvalidEntry, e.Kind)
	}

	return nil
}

func (e *CacheEntry) validateRefreshShape() error {
	if e.RefreshToken == "" {
		return fmt.Errorf("%w: %s requires a refresh token", ErrInvalidEntry, e.Kind)
	}
	if e.AccessToken != "" {
		return fmt.Errorf("%w: %s must not carry an access token", ErrInvalidEntry, e.Kind)
	}
	if !e.ExpiresOn.IsZero() {
		return fmt.Errorf("%w: %s must not carry an expiry", ErrInvalidEntry, e.Kind)
	}
	return nil
}

// UserID returns the entry's user ID, or "" when the user is unknown.
func (e *CacheEntry) UserID() string {
	if e.UserInfo == nil {
		return ""
	}
	return e.UserInfo.UserID
}

// IdentityKey derives the storage key shared by all users of this entry's
// (authority, resource, clientId) triple.
func (e *CacheEntry) IdentityKey() string {
	return cachekey.DeriveIdentityKey(e.Authority, e.Resource, e.ClientID)
}

// FullKey derives the uniqueness key for this entry: at most one record per
// full key may exist in the store.
func (e *CacheEntry) FullKey() string {
	return cachekey.DeriveFullKey(e.IdentityKey(), e.UserID())
}

// Account returns the encoded account attribute stored for this entry.
func (e *CacheEntry) Account() string {
	return cachekey.AccountForUser(e.UserID())
}

// Expired reports whether an access-token entry has passed its expiry.
// Refresh-shaped entries never expire from the cache's point of view.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.Kind == AccessToken && now.After(e.ExpiresOn)
}

// Clone returns a deep copy, so callers can hand out cached entries without
// exposing shared mutable state.
func (e *CacheEntry) Clone() *CacheEntry {
	cp, err := copystructure.Copy(e)
	if err != nil {
		// CacheEntry contains nothing copystructure cannot walk.
		panic(err)
	}
	return cp.(*CacheEntry)
}
