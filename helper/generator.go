package helper

import (
	"crypto/rand"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/hashicorp/go-uuid"
	"github.com/oklog/ulid"
)

// GenerateRecordUID returns a UUID used to identify one stored record. The
// secure store matches updates and deletes by this value, never by the
// derived cache keys.
func GenerateRecordUID() (string, error) {
	return uuid.GenerateUUID()
}

// GenerateCorrelationID returns a sortable ID attached to every multi-step
// store operation so its log lines can be tied together.
func GenerateCorrelationID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// GenerateRandomString generates a random base62 string of the given length.
func GenerateRandomString(length int) string {
	s, err := base62.Random(length)
	if err != nil {
		// base62.Random only fails when the system entropy source does.
		panic(err)
	}
	return s
}
