// Package securestore defines the contract the cache relies on from its
// backing secure key-value store: flat attribute-based queries, exact-match
// updates, no transactions and no compare-and-swap. Callers that need
// read-modify-write consistency must serialize around it themselves.
package securestore

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists is returned by Add when a live record already
	// carries the same attribute identity.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrRecordNotFound is returned by Update, Delete and ReadData when no
	// record matches.
	ErrRecordNotFound = errors.New("record not found")

	// ErrValueTooLarge is returned when a record's data exceeds the
	// backend's configured limit.
	ErrValueTooLarge = errors.New("value is too large")
)

// AttributeSet uniquely identifies one stored record. UID is assigned by
// the backend on Add; the remaining attributes are supplied by the caller.
// An AttributeSet returned from Query can be re-submitted verbatim to
// Update, Delete (via its Filter) and ReadData.
type AttributeSet struct {
	UID     string
	Library string
	Group   string
	Service string
	Account string
}

// Filter selects records by attribute equality. Empty fields match
// everything, so the zero Filter selects the whole store.
type Filter struct {
	Library string
	Group   string
	Service string
	Account string
}

// Matches reports whether the attribute set satisfies the filter.
func (a AttributeSet) Matches(f Filter) bool {
	if f.Library != "" && f.Library != a.Library {
		return false
	}
	if f.Group != "" && f.Group != a.Group {
		return false
	}
	if f.Service != "" && f.Service != a.Service {
		return false
	}
	if f.Account != "" && f.Account != a.Account {
		return false
	}
	return true
}

// Filter returns the filter that matches exactly this record.
func (a AttributeSet) Filter() Filter {
	return Filter{
		Library: a.Library,
		Group:   a.Group,
		Service: a.Service,
		Account: a.Account,
	}
}

// Storage is the secure store consumed by the cache. Implementations may
// return several attribute sets for the same logical identity after a race
// or corruption; interpreting that is the caller's job. No call is atomic
// with respect to any other.
type Storage interface {
	// Query returns the attribute sets of all records matching the filter.
	Query(ctx context.Context, filter Filter) ([]AttributeSet, error)

	// Add stores a new record. The backend assigns the UID.
	Add(ctx context.Context, attrs AttributeSet, data []byte) error

	// Update replaces the data of the record identified by the exact
	// attribute set previously returned from Query.
	Update(ctx context.Context, attrs AttributeSet, data []byte) error

	// Delete removes every record matching the filter and reports
	// ErrRecordNotFound when there were none.
	Delete(ctx context.Context, filter Filter) error

	// ReadData returns the opaque bytes of one record.
	ReadData(ctx context.Context, attrs AttributeSet) ([]byte, error)
}
