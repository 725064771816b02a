package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) securestore.Storage {
	t.Helper()
	s, err := NewFileStorage(map[string]string{"path": t.TempDir()}, logger.NewNopLogger())
	require.NoError(t, err)
	return s
}

func attrs(service, account string) securestore.AttributeSet {
	return securestore.AttributeSet{
		Library: "credcache.v1",
		Group:   "default",
		Service: service,
		Account: account,
	}
}

func TestFileStorage_RequiresPath(t *testing.T) {
	_, err := NewFileStorage(nil, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestFileStorage_AddQueryRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("payload")))

	sets, err := s.Query(ctx, securestore.Filter{Service: "svc-1"})
	require.NoError(t, err)
	require.Len(t, sets, 1)

	data, err := s.ReadData(ctx, sets[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestFileStorage_AddDuplicateIdentityRejected(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("a")))
	assert.ErrorIs(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("b")), securestore.ErrAlreadyExists)
}

func TestFileStorage_UpdateStaleAttributes(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("a")))

	sets, err := s.Query(ctx, securestore.Filter{Service: "svc-1"})
	require.NoError(t, err)
	require.Len(t, sets, 1)

	require.NoError(t, s.Update(ctx, sets[0], []byte("b")))

	// An attribute set whose fields no longer match the stored record must
	// not update it.
	stale := sets[0]
	stale.Account = "someone-else"
	assert.ErrorIs(t, s.Update(ctx, stale, []byte("c")), securestore.ErrRecordNotFound)
}

func TestFileStorage_DeleteByFilter(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("a")))
	require.NoError(t, s.Add(ctx, attrs("svc-2", "acct-1"), []byte("b")))

	require.NoError(t, s.Delete(ctx, securestore.Filter{Service: "svc-1"}))

	sets, err := s.Query(ctx, securestore.Filter{})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "svc-2", sets[0].Service)

	assert.ErrorIs(t, s.Delete(ctx, securestore.Filter{Service: "svc-1"}), securestore.ErrRecordNotFound)
}

func TestFileStorage_SkipsUnreadableRecords(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(map[string]string{"path": dir}, logger.NewNopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, attrs("svc-1", "acct-1"), []byte("a")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0o600))

	sets, err := s.Query(ctx, securestore.Filter{})
	require.NoError(t, err)
	assert.Len(t, sets, 1)
}

func TestFileStorage_RecordFilePermissions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(map[string]string{"path": dir}, logger.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, s.Add(context.Background(), attrs("svc-1", "acct-1"), []byte("secret")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
