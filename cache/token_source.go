package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stephnangue/credcache/credential"
	"golang.org/x/oauth2"
)

// ErrNoValidToken is returned by a cached token source when the cache
// holds no unexpired access token for its identity.
var ErrNoValidToken = errors.New("no valid access token in cache")

// cachedTokenSource serves oauth2 tokens straight from a TokenCacheStore.
// It never refreshes: acquiring new tokens is the caller's concern, the
// source only surfaces what the cache already holds.
type cachedTokenSource struct {
	store     *TokenCacheStore
	authority string
	resource  string
	clientID  string
	userID    string
	now       func() time.Time
}

// NewTokenSource returns an oauth2.TokenSource backed by the cache for one
// identity. Token returns ErrNoValidToken when the cached access token is
// missing or expired.
func NewTokenSource(store *TokenCacheStore, authority, resource, clientID, userID string) oauth2.TokenSource {
	return &cachedTokenSource{
		store:     store,
		authority: authority,
		resource:  resource,
		clientID:  clientID,
		userID:    userID,
		now:       time.Now,
	}
}

func (ts *cachedTokenSource) Token() (*oauth2.Token, error) {
	entry, err := ts.store.GetItem(context.Background(), ts.authority, ts.resource, ts.clientID, ts.userID)
	if err != nil {
		return nil, fmt.Errorf("reading cached token: %w", err)
	}
	if entry == nil || entry.Kind != credential.AccessToken {
		return nil, ErrNoValidToken
	}
	if entry.Expired(ts.now()) {
		return nil, ErrNoValidToken
	}

	return &oauth2.Token{
		AccessToken:  entry.AccessToken,
		RefreshToken: entry.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       entry.ExpiresOn,
	}, nil
}
