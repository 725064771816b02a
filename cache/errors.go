package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMultipleUsers is returned when an identity-only lookup matches
	// entries for more than one user. The caller must name a user; the
	// cache never picks one arbitrarily.
	ErrMultipleUsers = errors.New("multiple users match this identity, specify a user")

	// ErrStoreClosed is returned by every operation after Close.
	ErrStoreClosed = errors.New("token cache store is closed")
)

// PersistenceError wraps a secure-store failure with enough context to
// retry or report: the operation, the key material involved and the
// underlying error.
type PersistenceError struct {
	Op      string
	Service string
	Account string
	Err     error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Account != "" {
		return fmt.Sprintf("cache persistence failed during %s (service=%s account=%s): %v",
			e.Op, e.Service, e.Account, e.Err)
	}
	if e.Service != "" {
		return fmt.Sprintf("cache persistence failed during %s (service=%s): %v", e.Op, e.Service, e.Err)
	}
	return fmt.Sprintf("cache persistence failed during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op, service, account string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Service: service, Account: account, Err: err}
}
