package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/stephnangue/credcache/cachekey"
	"github.com/stephnangue/credcache/credential"
	"github.com/stephnangue/credcache/helper"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
)

const (
	defaultCacheNumCounters = 10_000
	defaultCacheMaxCost     = 1_000
)

// StoreConfig configures a TokenCacheStore.
type StoreConfig struct {
	// Group is the storage group all operations are scoped to.
	Group string

	// EnableEntryCache turns on an in-process read cache keyed by full
	// key. The secure store stays authoritative: every write path
	// invalidates the cached entry before returning.
	EnableEntryCache bool
	CacheNumCounters int64
	CacheMaxCost     int64
}

// TokenCacheStore is the credential cache facade. A single mutex covers
// each operation end to end, including storage I/O, so multi-step
// operations never interleave within one instance.
type TokenCacheStore struct {
	mu         sync.Mutex
	storage    securestore.Storage
	reconciler *Reconciler
	logger     log.Logger
	group      string
	entryCache *ristretto.Cache[string, *credential.CacheEntry]
	closed     bool
}

// NewTokenCacheStore builds a store over the given secure store adapter.
func NewTokenCacheStore(storage securestore.Storage, conf StoreConfig, logger log.Logger) (*TokenCacheStore, error) {
	s := &TokenCacheStore{
		storage:    storage,
		reconciler: NewReconciler(storage, logger),
		logger:     logger.WithSubsystem("token_cache"),
		group:      conf.Group,
	}

	if conf.EnableEntryCache {
		numCounters := conf.CacheNumCounters
		if numCounters <= 0 {
			numCounters = defaultCacheNumCounters
		}
		maxCost := conf.CacheMaxCost
		if maxCost <= 0 {
			maxCost = defaultCacheMaxCost
		}
		cache, err := ristretto.NewCache(&ristretto.Config[string, *credential.CacheEntry]{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		s.entryCache = cache
	}

	return s, nil
}

// GetItem returns the single entry for an identity, cloned so callers
// cannot mutate cache state. When userID is empty and exactly one user has
// an entry, that entry is returned; with several users the caller must
// disambiguate and ErrMultipleUsers is returned. A missing entry is
// (nil, nil), not an error.
func (s *TokenCacheStore) GetItem(ctx context.Context, authority, resource, clientID, userID string) (*credential.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	identityKey := cachekey.DeriveIdentityKey(authority, resource, clientID)

	if s.entryCache != nil && userID != "" {
		if entry, ok := s.entryCache.Get(cachekey.DeriveFullKey(identityKey, userID)); ok {
			return entry.Clone(), nil
		}
	}

	entries, err := s.reconciler.Lookup(ctx, s.group, identityKey, userID)
	if err != nil {
		return nil, err
	}

	switch len(entries) {
	case 0:
		return nil, nil
	case 1:
		s.cachePut(entries[0])
		return entries[0].Clone(), nil
	default:
		return nil, ErrMultipleUsers
	}
}

// GetItems returns every entry for an identity key across all users.
func (s *TokenCacheStore) GetItems(ctx context.Context, authority, resource, clientID string) ([]*credential.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	identityKey := cachekey.DeriveIdentityKey(authority, resource, clientID)
	entries, err := s.reconciler.Lookup(ctx, s.group, identityKey, "")
	if err != nil {
		return nil, err
	}

	cloned := make([]*credential.CacheEntry, 0, len(entries))
	for _, entry := range entries {
		cloned = append(cloned, entry.Clone())
	}
	return cloned, nil
}

// AddOrUpdate writes one entry, replacing whatever record currently holds
// its full key. Duplicated records are deleted first so the write lands on
// a clean slot.
func (s *TokenCacheStore) AddOrUpdate(ctx context.Context, entry *credential.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	identityKey := entry.IdentityKey()
	account := entry.Account()
	correlationID := helper.GenerateCorrelationID()

	data, err := entry.Serialize()
	if err != nil {
		return persistenceErr("serialize", identityKey, account, err)
	}

	filter := securestore.Filter{
		Library: cachekey.LibraryTag,
		Group:   s.group,
		Service: identityKey,
		Account: account,
	}
	sets, err := s.storage.Query(ctx, filter)
	if err != nil {
		return persistenceErr("query", identityKey, account, err)
	}

	s.cacheDrop(entry.FullKey())

	switch len(sets) {
	case 0:
		// fall through to add
	case 1:
		err := s.storage.Update(ctx, sets[0], data)
		if err == nil {
			s.cachePut(entry)
			return nil
		}
		if !errors.Is(err, securestore.ErrRecordNotFound) {
			return persistenceErr("update", identityKey, account, err)
		}
		// Deleted between query and update. Re-add below.
		s.logger.Debug("record disappeared before update, re-adding",
			log.String("service", identityKey),
			log.String("account", account),
			log.String("correlation_id", correlationID),
		)
	default:
		s.logger.Warn("duplicate records detected on write, deleting all copies",
			log.String("service", identityKey),
			log.String("account", account),
			log.Int("copies", len(sets)),
			log.String("correlation_id", correlationID),
		)
		if err := s.storage.Delete(ctx, filter); err != nil &&
			!errors.Is(err, securestore.ErrRecordNotFound) {
			return persistenceErr("delete", identityKey, account, err)
		}
	}

	err = s.storage.Add(ctx, securestore.AttributeSet{
		Library: cachekey.LibraryTag,
		Group:   s.group,
		Service: identityKey,
		Account: account,
	}, data)
	if err != nil {
		return persistenceErr("add", identityKey, account, err)
	}
	s.cachePut(entry)
	return nil
}

// RemoveItem deletes the entry for one identity. When userID is empty
// every user's entry under the identity key is removed. Removing an absent
// entry succeeds.
func (s *TokenCacheStore) RemoveItem(ctx context.Context, authority, resource, clientID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	identityKey := cachekey.DeriveIdentityKey(authority, resource, clientID)
	filter := securestore.Filter{
		Library: cachekey.LibraryTag,
		Group:   s.group,
		Service: identityKey,
	}
	if userID != "" {
		filter.Account = cachekey.AccountForUser(userID)
	}

	s.cacheClear()

	err := s.storage.Delete(ctx, filter)
	if err != nil && !errors.Is(err, securestore.ErrRecordNotFound) {
		return persistenceErr("delete", identityKey, filter.Account, err)
	}
	return nil
}

// RemoveAll deletes every record in the store's group.
func (s *TokenCacheStore) RemoveAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.cacheClear()

	err := s.storage.Delete(ctx, securestore.Filter{
		Library: cachekey.LibraryTag,
		Group:   s.group,
	})
	if err != nil && !errors.Is(err, securestore.ErrRecordNotFound) {
		return persistenceErr("delete", "", "", err)
	}
	return nil
}

// ChangeStorageGroup moves the store to a new group: entries readable in
// the old group are reconciled into the new one, then all subsequent
// operations target the new group. The old group's records are left in
// place. Moving to the current group is a no-op.
func (s *TokenCacheStore) ChangeStorageGroup(ctx context.Context, newGroup string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if newGroup == s.group {
		return nil
	}

	correlationID := helper.GenerateCorrelationID()
	oldGroup := s.group
	s.logger.Info("changing storage group",
		log.String("old_group", oldGroup),
		log.String("new_group", newGroup),
		log.String("correlation_id", correlationID),
	)

	snapshot, err := s.reconciler.ListAll(ctx, oldGroup)
	if err != nil {
		return err
	}

	entries := make([]*credential.CacheEntry, 0, len(snapshot.Records))
	for _, attrs := range snapshot.Records {
		entry, err := s.reconciler.readEntry(ctx, attrs)
		if err != nil {
			s.logger.Warn("skipping undecodable record during group change",
				log.String("service", attrs.Service),
				log.String("account", attrs.Account),
				log.String("correlation_id", correlationID),
				log.Err(err),
			)
			continue
		}
		entries = append(entries, entry)
	}

	s.group = newGroup
	s.cacheClear()

	if err := s.reconciler.Reconcile(ctx, newGroup, entries); err != nil {
		return err
	}
	return nil
}

// Reconcile merges the given entries into the store's group. Per-item
// failures are collected; a retry with the same entries converges.
func (s *TokenCacheStore) Reconcile(ctx context.Context, entries []*credential.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	s.cacheClear()
	return s.reconciler.Reconcile(ctx, s.group, entries)
}

// ListAll returns the interpreted snapshot of the store's group.
func (s *TokenCacheStore) ListAll(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.reconciler.ListAll(ctx, s.group)
}

// Group returns the storage group the store currently targets.
func (s *TokenCacheStore) Group() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

// Close releases the store. Further operations return ErrStoreClosed.
func (s *TokenCacheStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.entryCache != nil {
		s.entryCache.Close()
		s.entryCache = nil
	}
}

func (s *TokenCacheStore) cachePut(entry *credential.CacheEntry) {
	if s.entryCache == nil {
		return
	}
	s.entryCache.Set(entry.FullKey(), entry.Clone(), 1)
	s.entryCache.Wait()
}

func (s *TokenCacheStore) cacheDrop(fullKey string) {
	if s.entryCache == nil {
		return
	}
	s.entryCache.Del(fullKey)
}

func (s *TokenCacheStore) cacheClear() {
	if s.entryCache == nil {
		return
	}
	s.entryCache.Clear()
}
