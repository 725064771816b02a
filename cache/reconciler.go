// Package cache implements the credential cache core: full-key consistency
// over a store with no transactions, duplicate self-healing and bulk
// snapshot merging. The TokenCacheStore facade serializes access; the
// Reconciler interprets and repairs what the store returns.
package cache

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/stephnangue/credcache/cachekey"
	"github.com/stephnangue/credcache/credential"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
)

// Snapshot is the interpreted state of one storage group: at most one
// record per full key, plus the full keys that had to be healed to get
// there. Healing is routine recovery, not an error.
type Snapshot struct {
	// Records maps full keys to the attribute set the store returned for
	// them. Updates must be issued against these exact attribute sets.
	Records map[string]securestore.AttributeSet

	// Healed lists full keys whose duplicated records were deleted.
	Healed []string
}

// Reconciler diffs desired cache state against the store and emits the
// minimal add/update operations. It holds no lock of its own: the facade
// serializes all calls into it.
type Reconciler struct {
	storage securestore.Storage
	logger  log.Logger
}

// NewReconciler wires a reconciler to a secure store.
func NewReconciler(storage securestore.Storage, logger log.Logger) *Reconciler {
	return &Reconciler{
		storage: storage,
		logger:  logger.WithSubsystem("reconciler"),
	}
}

// ListAll queries every record in the group and builds its Snapshot.
// Records sharing a full key are corruption: the data cannot be safely
// merged once duplicated, so all copies are deleted and none is returned.
func (r *Reconciler) ListAll(ctx context.Context, group string) (*Snapshot, error) {
	sets, err := r.storage.Query(ctx, securestore.Filter{
		Library: cachekey.LibraryTag,
		Group:   group,
	})
	if err != nil {
		return nil, persistenceErr("list", "", "", err)
	}

	byFullKey := make(map[string][]securestore.AttributeSet, len(sets))
	for _, attrs := range sets {
		fullKey := cachekey.FullKeyForAccount(attrs.Service, attrs.Account)
		byFullKey[fullKey] = append(byFullKey[fullKey], attrs)
	}

	snapshot := &Snapshot{
		Records: make(map[string]securestore.AttributeSet, len(byFullKey)),
	}
	for fullKey, records := range byFullKey {
		if len(records) == 1 {
			snapshot.Records[fullKey] = records[0]
			continue
		}

		// Same full key implies the same attribute identity, so one
		// filtered delete removes every copy.
		r.logger.Warn("duplicate records detected, deleting all copies",
			log.String("service", records[0].Service),
			log.String("account", records[0].Account),
			log.Int("copies", len(records)),
		)
		if err := r.storage.Delete(ctx, records[0].Filter()); err != nil &&
			!errors.Is(err, securestore.ErrRecordNotFound) {
			r.logger.Error("failed to heal duplicate records",
				log.String("service", records[0].Service),
				log.Err(err),
			)
		}
		snapshot.Healed = append(snapshot.Healed, fullKey)
	}

	return snapshot, nil
}

// Lookup returns the decoded entries matching an identity key, narrowed to
// one user when userID is non-empty. Duplicated records are healed the same
// way ListAll heals them. Records that no longer decode are skipped, not
// fatal: a single bad record must not take out the whole lookup.
func (r *Reconciler) Lookup(ctx context.Context, group, identityKey, userID string) ([]*credential.CacheEntry, error) {
	filter := securestore.Filter{
		Library: cachekey.LibraryTag,
		Group:   group,
		Service: identityKey,
	}
	if userID != "" {
		filter.Account = cachekey.AccountForUser(userID)
	}

	sets, err := r.storage.Query(ctx, filter)
	if err != nil {
		return nil, persistenceErr("lookup", identityKey, filter.Account, err)
	}

	byFullKey := make(map[string][]securestore.AttributeSet, len(sets))
	order := make([]string, 0, len(sets))
	for _, attrs := range sets {
		fullKey := cachekey.FullKeyForAccount(attrs.Service, attrs.Account)
		if _, seen := byFullKey[fullKey]; !seen {
			order = append(order, fullKey)
		}
		byFullKey[fullKey] = append(byFullKey[fullKey], attrs)
	}

	var entries []*credential.CacheEntry
	for _, fullKey := range order {
		records := byFullKey[fullKey]
		if len(records) > 1 {
			r.logger.Warn("duplicate records detected during lookup, deleting all copies",
				log.String("service", records[0].Service),
				log.String("account", records[0].Account),
				log.Int("copies", len(records)),
			)
			if err := r.storage.Delete(ctx, records[0].Filter()); err != nil &&
				!errors.Is(err, securestore.ErrRecordNotFound) {
				r.logger.Error("failed to heal duplicate records",
					log.String("service", records[0].Service),
					log.Err(err),
				)
			}
			continue
		}

		entry, err := r.readEntry(ctx, records[0])
		if err != nil {
			r.logger.Warn("skipping undecodable record",
				log.String("service", records[0].Service),
				log.String("account", records[0].Account),
				log.Err(err),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r *Reconciler) readEntry(ctx context.Context, attrs securestore.AttributeSet) (*credential.CacheEntry, error) {
	data, err := r.storage.ReadData(ctx, attrs)
	if err != nil {
		return nil, err
	}
	return credential.Deserialize(data)
}

// Reconcile merges a desired snapshot of entries into the group. Entries
// whose full key exists are updated through the exact attribute set the
// store returned; absent ones are added; records the snapshot does not
// mention are left alone. Per-item failures are collected and the rest of
// the snapshot still processes. Running the same snapshot again converges
// to the same state, so a partial run is repaired by a retry.
func (r *Reconciler) Reconcile(ctx context.Context, group string, entries []*credential.CacheEntry) error {
	snapshot, err := r.ListAll(ctx, group)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, entry := range entries {
		if err := r.reconcileOne(ctx, group, snapshot, entry); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (r *Reconciler) reconcileOne(ctx context.Context, group string, snapshot *Snapshot, entry *credential.CacheEntry) error {
	identityKey := entry.IdentityKey()
	account := entry.Account()

	data, err := entry.Serialize()
	if err != nil {
		return persistenceErr("serialize", identityKey, account, err)
	}

	if attrs, ok := snapshot.Records[entry.FullKey()]; ok {
		err := r.storage.Update(ctx, attrs, data)
		if errors.Is(err, securestore.ErrRecordNotFound) {
			// The record vanished after ListAll. The desired end state
			// does not depend on which writer won, so this is not a
			// failure.
			r.logger.Debug("record disappeared before update",
				log.String("service", identityKey),
				log.String("account", account),
			)
			return nil
		}
		if err != nil {
			return persistenceErr("update", identityKey, account, err)
		}
		return nil
	}

	err = r.storage.Add(ctx, securestore.AttributeSet{
		Library: cachekey.LibraryTag,
		Group:   group,
		Service: identityKey,
		Account: account,
	}, data)
	if err != nil {
		return persistenceErr("add", identityKey, account, err)
	}
	return nil
}
