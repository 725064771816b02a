// Package inmem provides an in-memory securestore backend. It is useful for
// testing and development situations where the data is not expected to be
// durable, and it doubles as the test double for corruption scenarios via
// SeedDuplicate and the Fail* toggles.
package inmem

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/armon/go-radix"
	"github.com/stephnangue/credcache/helper"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
)

// Verify interfaces are satisfied
var _ securestore.Storage = (*InmemStorage)(nil)

// sep joins index segments. It cannot appear in attribute values, which are
// base64 material or fixed tags.
const sep = "\x00"

// InmemStorage holds records in a radix tree indexed by their attribute
// path, so filter queries walk a shared prefix instead of the whole store.
type InmemStorage struct {
	sync.RWMutex
	root         *radix.Tree
	logger       log.Logger
	failQuery    *uint32
	failAdd      *uint32
	failUpdate   *uint32
	failDelete   *uint32
	maxValueSize int
}

type record struct {
	attrs securestore.AttributeSet
	data  []byte
}

// NewInmem constructs a new in-memory backend. conf supports
// "max_value_size" as a decimal byte count.
func NewInmem(conf map[string]string, logger log.Logger) (securestore.Storage, error) {
	maxValueSize := 0
	if raw, ok := conf["max_value_size"]; ok {
		var err error
		maxValueSize, err = strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
	}

	return &InmemStorage{
		root:         radix.New(),
		logger:       logger,
		failQuery:    new(uint32),
		failAdd:      new(uint32),
		failUpdate:   new(uint32),
		failDelete:   new(uint32),
		maxValueSize: maxValueSize,
	}, nil
}

func indexKey(a securestore.AttributeSet) string {
	return strings.Join([]string{a.Library, a.Group, a.Service, a.Account, a.UID}, sep)
}

// indexPrefix returns the longest usable tree prefix for a filter: fields
// are indexed in filter order, so the walk stops at the first empty one.
func indexPrefix(f securestore.Filter) string {
	var b strings.Builder
	for _, field := range []string{f.Library, f.Group, f.Service, f.Account} {
		if field == "" {
			break
		}
		b.WriteString(field)
		b.WriteString(sep)
	}
	return b.String()
}

// Query returns the attribute sets of all matching records.
func (i *InmemStorage) Query(ctx context.Context, filter securestore.Filter) ([]securestore.AttributeSet, error) {
	if atomic.LoadUint32(i.failQuery) != 0 {
		return nil, ErrQueryDisabled
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	i.RLock()
	defer i.RUnlock()

	var out []securestore.AttributeSet
	i.root.WalkPrefix(indexPrefix(filter), func(s string, v interface{}) bool {
		rec := v.(*record)
		if rec.attrs.Matches(filter) {
			out = append(out, rec.attrs)
		}
		return false
	})
	return out, nil
}

// Add stores a new record, assigning its UID. It refuses to create a second
// live record with the same attribute identity.
func (i *InmemStorage) Add(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	if atomic.LoadUint32(i.failAdd) != 0 {
		return ErrAddDisabled
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if i.maxValueSize > 0 && len(data) > i.maxValueSize {
		return securestore.ErrValueTooLarge
	}

	i.Lock()
	defer i.Unlock()

	exists := false
	i.root.WalkPrefix(indexPrefix(attrs.Filter()), func(s string, v interface{}) bool {
		if v.(*record).attrs.Matches(attrs.Filter()) {
			exists = true
			return true
		}
		return false
	})
	if exists {
		return securestore.ErrAlreadyExists
	}

	return i.insert(attrs, data)
}

func (i *InmemStorage) insert(attrs securestore.AttributeSet, data []byte) error {
	uid, err := helper.GenerateRecordUID()
	if err != nil {
		return err
	}
	attrs.UID = uid

	stored := make([]byte, len(data))
	copy(stored, data)

	i.root.Insert(indexKey(attrs), &record{attrs: attrs, data: stored})
	return nil
}

// Update replaces the data of the record with the exact given attributes.
func (i *InmemStorage) Update(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	if atomic.LoadUint32(i.failUpdate) != 0 {
		return ErrUpdateDisabled
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if i.maxValueSize > 0 && len(data) > i.maxValueSize {
		return securestore.ErrValueTooLarge
	}

	i.Lock()
	defer i.Unlock()

	key := indexKey(attrs)
	raw, ok := i.root.Get(key)
	if !ok {
		return securestore.ErrRecordNotFound
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	raw.(*record).data = stored
	return nil
}

// Delete removes every record matching the filter.
func (i *InmemStorage) Delete(ctx context.Context, filter securestore.Filter) error {
	if atomic.LoadUint32(i.failDelete) != 0 {
		return ErrDeleteDisabled
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	i.Lock()
	defer i.Unlock()

	var keys []string
	i.root.WalkPrefix(indexPrefix(filter), func(s string, v interface{}) bool {
		if v.(*record).attrs.Matches(filter) {
			keys = append(keys, s)
		}
		return false
	})
	if len(keys) == 0 {
		return securestore.ErrRecordNotFound
	}
	for _, key := range keys {
		i.root.Delete(key)
	}
	return nil
}

// DeleteExact removes the single record with the given attribute set.
func (i *InmemStorage) DeleteExact(ctx context.Context, attrs securestore.AttributeSet) error {
	if atomic.LoadUint32(i.failDelete) != 0 {
		return ErrDeleteDisabled
	}

	i.Lock()
	defer i.Unlock()

	if _, ok := i.root.Delete(indexKey(attrs)); !ok {
		return securestore.ErrRecordNotFound
	}
	return nil
}

// ReadData returns the opaque bytes of one record.
func (i *InmemStorage) ReadData(ctx context.Context, attrs securestore.AttributeSet) ([]byte, error) {
	if atomic.LoadUint32(i.failQuery) != 0 {
		return nil, ErrQueryDisabled
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	i.RLock()
	defer i.RUnlock()

	raw, ok := i.root.Get(indexKey(attrs))
	if !ok {
		return nil, securestore.ErrRecordNotFound
	}

	rec := raw.(*record)
	out := make([]byte, len(rec.data))
	copy(out, rec.data)
	return out, nil
}

// SeedDuplicate inserts a record without the attribute-identity check,
// simulating the duplicate state a cross-process race can leave behind.
func (i *InmemStorage) SeedDuplicate(attrs securestore.AttributeSet, data []byte) error {
	i.Lock()
	defer i.Unlock()
	return i.insert(attrs, data)
}

// Len reports the number of live records.
func (i *InmemStorage) Len() int {
	i.RLock()
	defer i.RUnlock()
	return i.root.Len()
}
