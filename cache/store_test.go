package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stephnangue/credcache/cachekey"
	"github.com/stephnangue/credcache/credential"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, conf StoreConfig) (*TokenCacheStore, *inmem.InmemStorage) {
	t.Helper()
	backend := newTestBackend(t)
	if conf.Group == "" {
		conf.Group = testGroup
	}
	store, err := NewTokenCacheStore(backend, conf, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, backend
}

func TestTokenCacheStore_GetItem_MissReturnsNil(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	entry, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestTokenCacheStore_AddOrUpdate_ThenGetItem(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))
	assert.Equal(t, 1, backend.Len())

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.RefreshToken, got.RefreshToken)
}

func TestTokenCacheStore_GetItem_ReturnsClone(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{EnableEntryCache: true})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	got.RefreshToken = "mutated"
	got.UserInfo.UserID = "mutated"

	again, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	assert.Equal(t, entry.RefreshToken, again.RefreshToken)
	assert.Equal(t, "alice@test", again.UserInfo.UserID)
}

func TestTokenCacheStore_GetItem_EmptyUserWithSingleEntry(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@test", got.UserID())
}

func TestTokenCacheStore_GetItem_EmptyUserAmbiguous(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))
	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "bob@test")))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "")
	assert.ErrorIs(t, err, ErrMultipleUsers)
	assert.Nil(t, got)
}

func TestTokenCacheStore_GetItems_ReturnsAllUsers(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))
	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "bob@test")))

	entries, err := store.GetItems(context.Background(), "https://login.test", "api://crm", "client-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTokenCacheStore_AddOrUpdate_ReplacesExisting(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))

	rotated, err := credential.NewRefreshTokenEntry(
		"https://login.test", "api://crm", "client-1", testUser("alice@test"), "rt-rotated")
	require.NoError(t, err)
	require.NoError(t, store.AddOrUpdate(context.Background(), rotated))
	assert.Equal(t, 1, backend.Len(), "full key uniqueness must hold across writes")

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	assert.Equal(t, "rt-rotated", got.RefreshToken)
}

func TestTokenCacheStore_AddOrUpdate_HealsDuplicatesBeforeWriting(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	seedEntry(t, backend, testGroup, entry)
	data, err := entry.Serialize()
	require.NoError(t, err)
	seedDuplicate(t, backend, testGroup, entry, data)
	require.Equal(t, 2, backend.Len())

	require.NoError(t, store.AddOrUpdate(context.Background(), entry))
	assert.Equal(t, 1, backend.Len())

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestTokenCacheStore_RemoveItem_SingleUser(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))
	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "bob@test")))

	require.NoError(t, store.RemoveItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test"))
	assert.Equal(t, 1, backend.Len())

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "bob@test")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestTokenCacheStore_RemoveItem_AllUsers(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))
	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "bob@test")))

	require.NoError(t, store.RemoveItem(context.Background(), "https://login.test", "api://crm", "client-1", ""))
	assert.Equal(t, 0, backend.Len())
}

func TestTokenCacheStore_RemoveItem_AbsentSucceeds(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	err := store.RemoveItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	assert.NoError(t, err)
}

func TestTokenCacheStore_RemoveAll_ScopedToGroup(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))

	other := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "bob@test")
	seedEntry(t, backend, "other-group", other)

	require.NoError(t, store.RemoveAll(context.Background()))
	assert.Equal(t, 1, backend.Len(), "records outside the group survive")

	require.NoError(t, store.RemoveAll(context.Background()), "empty group removal succeeds")
}

func TestTokenCacheStore_ChangeStorageGroup_MigratesEntries(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))

	require.NoError(t, store.ChangeStorageGroup(context.Background(), "migrated"))
	assert.Equal(t, "migrated", store.Group())
	assert.Equal(t, 2, backend.Len(), "old group records stay in place")

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.RefreshToken, got.RefreshToken)
}

func TestTokenCacheStore_ChangeStorageGroup_SameGroupNoop(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	require.NoError(t, store.ChangeStorageGroup(context.Background(), testGroup))
	assert.Equal(t, testGroup, store.Group())
}

func TestTokenCacheStore_ChangeStorageGroup_MergesIntoNewGroup(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	require.NoError(t, store.AddOrUpdate(context.Background(),
		mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")))

	// The target group already holds an entry for the same full key. The
	// migrated entry overwrites it instead of creating a duplicate.
	stale, err := credential.NewRefreshTokenEntry(
		"https://login.test", "api://crm", "client-1", testUser("alice@test"), "rt-stale")
	require.NoError(t, err)
	seedEntry(t, backend, "migrated", stale)

	require.NoError(t, store.ChangeStorageGroup(context.Background(), "migrated"))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rt-alice@test", got.RefreshToken)
}

func TestTokenCacheStore_EntryCache_InvalidatedOnRemove(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{EnableEntryCache: true})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, store.RemoveItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test"))

	got, err = store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTokenCacheStore_ClosedStoreRejectsOperations(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})
	store.Close()

	_, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	assert.ErrorIs(t, err, ErrStoreClosed)

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	assert.ErrorIs(t, store.AddOrUpdate(context.Background(), entry), ErrStoreClosed)
	assert.ErrorIs(t, store.RemoveAll(context.Background()), ErrStoreClosed)
	assert.ErrorIs(t, store.ChangeStorageGroup(context.Background(), "elsewhere"), ErrStoreClosed)

	store.Close()
}

func TestTokenCacheStore_PersistenceErrorsWrapBackend(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	backend.FailQuery(true)
	_, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.Error(t, err)
	assert.ErrorIs(t, err, inmem.ErrQueryDisabled)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "lookup", perr.Op)
}

func TestTokenCacheStore_AllKindsRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})
	user := testUser("alice@test")

	access, err := credential.NewAccessTokenEntry(
		"https://login.test", "api://crm", "client-1", user, "at-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	mrrt, err := credential.NewMultiResourceRefreshTokenEntry(
		"https://login.test", "client-1", user, "mrrt-1")
	require.NoError(t, err)
	family, err := credential.NewFamilyRefreshTokenEntry(
		"https://login.test", "family-1", user, "frt-1")
	require.NoError(t, err)

	for _, entry := range []*credential.CacheEntry{access, mrrt, family} {
		require.NoError(t, store.AddOrUpdate(context.Background(), entry))
	}

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, credential.AccessToken, got.Kind)

	got, err = store.GetItem(context.Background(), "https://login.test", "", "client-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, credential.MultiResourceRefreshToken, got.Kind)

	got, err = store.GetItem(context.Background(), "https://login.test", "", "foci-family-1", "alice@test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, credential.FamilyRefreshToken, got.Kind)
}

func TestTokenCacheStore_UnknownUserEntry(t *testing.T) {
	store, _ := newTestStore(t, StoreConfig{})

	entry, err := credential.NewRefreshTokenEntry(
		"https://login.test", "api://crm", "client-1", nil, "rt-service")
	require.NoError(t, err)
	require.NoError(t, store.AddOrUpdate(context.Background(), entry))

	got, err := store.GetItem(context.Background(), "https://login.test", "api://crm", "client-1", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.UserInfo)
	assert.Equal(t, cachekey.UnknownUserAccount, got.Account())
}

func TestTokenCacheStore_ListAllReportsHealing(t *testing.T) {
	store, backend := newTestStore(t, StoreConfig{})

	entry := mustRefreshEntry(t, "https://login.test", "api://crm", "client-1", "alice@test")
	seedEntry(t, backend, testGroup, entry)
	data, err := entry.Serialize()
	require.NoError(t, err)
	seedDuplicate(t, backend, testGroup, entry, data)

	snapshot, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{entry.FullKey()}, snapshot.Healed)
	assert.Empty(t, snapshot.Records)
}
