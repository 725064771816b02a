// Package postgres provides a securestore backend on PostgreSQL. Records
// live in one flat table keyed by UID; attribute filters translate to WHERE
// clauses. The backend offers no transactional guarantees across calls,
// matching the adapter contract.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/stephnangue/credcache/helper"
	log "github.com/stephnangue/credcache/logger"
	"github.com/stephnangue/credcache/securestore"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver
)

var _ securestore.Storage = (*PostgreSQLStorage)(nil)

const defaultTable = "credcache_store"

// Config holds the PostgreSQL backend configuration.
type Config struct {
	ConnectionURL      string `mapstructure:"connection_url"`
	Table              string `mapstructure:"table"`
	MaxIdleConnections string `mapstructure:"max_idle_connections"`
	SkipCreateTable    string `mapstructure:"skip_create_table"`
}

// PostgreSQLStorage is a securestore backend over a single PostgreSQL table.
type PostgreSQLStorage struct {
	client *sql.DB
	logger log.Logger
	table  string

	existsQuery string
	addExec     string
	updateExec  string
	readQuery   string
}

// NewPostgreSQLStorage connects to PostgreSQL and prepares the backend.
func NewPostgreSQLStorage(conf map[string]string, logger log.Logger) (securestore.Storage, error) {
	var cfg Config
	if err := mapstructure.Decode(conf, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode postgres storage config: %w", err)
	}
	if cfg.ConnectionURL == "" {
		return nil, fmt.Errorf("'connection_url' must be set for postgres storage")
	}

	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	quoted := QuoteIdentifier(table)

	db, err := sql.Open("pgx", cfg.ConnectionURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if cfg.MaxIdleConnections != "" {
		maxIdle, err := strconv.Atoi(cfg.MaxIdleConnections)
		if err != nil {
			return nil, fmt.Errorf("invalid max_idle_connections: %w", err)
		}
		db.SetMaxIdleConns(maxIdle)
	}

	s := newWithClient(db, quoted, logger)

	if cfg.SkipCreateTable != "true" {
		if err := s.createTable(context.Background()); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func newWithClient(db *sql.DB, quotedTable string, logger log.Logger) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		client: db,
		logger: logger,
		table:  quotedTable,

		existsQuery: `SELECT 1 FROM ` + quotedTable +
			` WHERE library = $1 AND storage_group = $2 AND service = $3 AND account = $4 LIMIT 1`,
		addExec: `INSERT INTO ` + quotedTable +
			` (uid, library, storage_group, service, account, value) VALUES ($1, $2, $3, $4, $5, $6)`,
		updateExec: `UPDATE ` + quotedTable + ` SET value = $1` +
			` WHERE uid = $2 AND library = $3 AND storage_group = $4 AND service = $5 AND account = $6`,
		readQuery: `SELECT value FROM ` + quotedTable +
			` WHERE uid = $1 AND library = $2 AND storage_group = $3 AND service = $4 AND account = $5`,
	}
}

func (s *PostgreSQLStorage) createTable(ctx context.Context) error {
	_, err := s.client.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		uid TEXT PRIMARY KEY,
		library TEXT NOT NULL,
		storage_group TEXT NOT NULL,
		service TEXT NOT NULL,
		account TEXT NOT NULL,
		value BYTEA NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create storage table: %w", err)
	}
	return nil
}

// whereClause builds the WHERE fragment and arguments for a filter. An
// empty filter yields no WHERE at all, selecting the whole table.
func whereClause(f securestore.Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("library", f.Library)
	add("storage_group", f.Group)
	add("service", f.Service)
	add("account", f.Account)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query returns the attribute sets of all matching records.
func (s *PostgreSQLStorage) Query(ctx context.Context, filter securestore.Filter) ([]securestore.AttributeSet, error) {
	where, args := whereClause(filter)
	rows, err := s.client.QueryContext(ctx,
		`SELECT uid, library, storage_group, service, account FROM `+s.table+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []securestore.AttributeSet
	for rows.Next() {
		var a securestore.AttributeSet
		if err := rows.Scan(&a.UID, &a.Library, &a.Group, &a.Service, &a.Account); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

// Add stores a new record, assigning its UID.
func (s *PostgreSQLStorage) Add(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	row := s.client.QueryRowContext(ctx, s.existsQuery,
		attrs.Library, attrs.Group, attrs.Service, attrs.Account)

	var one int
	err := row.Scan(&one)
	switch {
	case err == nil:
		return securestore.ErrAlreadyExists
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to check for existing record: %w", err)
	}

	uid, err := helper.GenerateRecordUID()
	if err != nil {
		return err
	}

	if _, err := s.client.ExecContext(ctx, s.addExec,
		uid, attrs.Library, attrs.Group, attrs.Service, attrs.Account, data); err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Update replaces the data of the record with the exact given attributes.
func (s *PostgreSQLStorage) Update(ctx context.Context, attrs securestore.AttributeSet, data []byte) error {
	result, err := s.client.ExecContext(ctx, s.updateExec,
		data, attrs.UID, attrs.Library, attrs.Group, attrs.Service, attrs.Account)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return securestore.ErrRecordNotFound
	}
	return nil
}

// Delete removes every record matching the filter.
func (s *PostgreSQLStorage) Delete(ctx context.Context, filter securestore.Filter) error {
	where, args := whereClause(filter)
	result, err := s.client.ExecContext(ctx, `DELETE FROM `+s.table+where, args...)
	if err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return securestore.ErrRecordNotFound
	}
	return nil
}

// ReadData returns the opaque bytes of one record.
func (s *PostgreSQLStorage) ReadData(ctx context.Context, attrs securestore.AttributeSet) ([]byte, error) {
	row := s.client.QueryRowContext(ctx, s.readQuery,
		attrs.UID, attrs.Library, attrs.Group, attrs.Service, attrs.Account)

	var value []byte
	err := row.Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return nil, securestore.ErrRecordNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return value, nil
}

// QuoteIdentifier makes a table name safe for interpolation into SQL text.
func QuoteIdentifier(name string) string {
	end := strings.IndexRune(name, 0)
	if end > -1 {
		name = name[:end]
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
