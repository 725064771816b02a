package credential

import "errors"

var (
	// ErrInvalidEntry is returned when a cache entry violates the shape
	// rules of its token kind at construction time
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrFutureVersion is returned when a persisted record was written by a
	// newer library version than this one understands
	ErrFutureVersion = errors.New("cache entry written by a newer library version")

	// ErrInvalidIdentityToken is returned when an identity token cannot be
	// parsed into a user identity
	ErrInvalidIdentityToken = errors.New("invalid identity token")
)
