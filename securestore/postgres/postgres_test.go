package postgres

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMockStorage creates a PostgreSQLStorage with a mocked database
// connection
func createMockStorage(t *testing.T) (*PostgreSQLStorage, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	storage := newWithClient(db, `"test_table"`, logger.NewNopLogger())

	return storage, mock, func() { db.Close() }
}

func testAttrs() securestore.AttributeSet {
	return securestore.AttributeSet{
		UID:     "uid-1",
		Library: "credcache.v1",
		Group:   "default",
		Service: "svc-1",
		Account: "acct-1",
	}
}

func TestPostgres_Query(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"uid", "library", "storage_group", "service", "account"}).
		AddRow("uid-1", "credcache.v1", "default", "svc-1", "acct-1").
		AddRow("uid-2", "credcache.v1", "default", "svc-1", "acct-2")

	mock.ExpectQuery(`SELECT uid, library, storage_group, service, account FROM "test_table" WHERE library = \$1 AND storage_group = \$2 AND service = \$3`).
		WithArgs("credcache.v1", "default", "svc-1").
		WillReturnRows(rows)

	sets, err := storage.Query(context.Background(), securestore.Filter{
		Library: "credcache.v1",
		Group:   "default",
		Service: "svc-1",
	})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "acct-1", sets[0].Account)
	assert.Equal(t, "acct-2", sets[1].Account)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryEmptyFilter(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT uid, library, storage_group, service, account FROM "test_table"$`).
		WillReturnRows(sqlmock.NewRows([]string{"uid", "library", "storage_group", "service", "account"}))

	sets, err := storage.Query(context.Background(), securestore.Filter{})
	require.NoError(t, err)
	assert.Empty(t, sets)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddNewRecord(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT 1 FROM "test_table" WHERE library = \$1 AND storage_group = \$2 AND service = \$3 AND account = \$4 LIMIT 1`).
		WithArgs("credcache.v1", "default", "svc-1", "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	mock.ExpectExec(`INSERT INTO "test_table" \(uid, library, storage_group, service, account, value\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`).
		WithArgs(sqlmock.AnyArg(), "credcache.v1", "default", "svc-1", "acct-1", []byte("payload")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	attrs := testAttrs()
	attrs.UID = ""
	err := storage.Add(context.Background(), attrs, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddExistingIdentity(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT 1 FROM "test_table"`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	err := storage.Add(context.Background(), testAttrs(), []byte("payload"))
	assert.ErrorIs(t, err, securestore.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Update(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "test_table" SET value = \$1 WHERE uid = \$2`).
		WithArgs([]byte("new"), "uid-1", "credcache.v1", "default", "svc-1", "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, storage.Update(context.Background(), testAttrs(), []byte("new")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateNotFound(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE "test_table" SET value = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.Update(context.Background(), testAttrs(), []byte("new"))
	assert.ErrorIs(t, err, securestore.ErrRecordNotFound)
}

func TestPostgres_DeleteNotFound(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM "test_table" WHERE service = \$1`).
		WithArgs("svc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := storage.Delete(context.Background(), securestore.Filter{Service: "svc-1"})
	assert.ErrorIs(t, err, securestore.ErrRecordNotFound)
}

func TestPostgres_ReadData(t *testing.T) {
	storage, mock, cleanup := createMockStorage(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT value FROM "test_table" WHERE uid = \$1`).
		WithArgs("uid-1", "credcache.v1", "default", "svc-1", "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("payload")))

	data, err := storage.ReadData(context.Background(), testAttrs())
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteIdentifier("plain"))
	assert.Equal(t, `"with""quote"`, QuoteIdentifier(`with"quote`))
	assert.Equal(t, `"trunc"`, QuoteIdentifier("trunc\x00ated"))
}
