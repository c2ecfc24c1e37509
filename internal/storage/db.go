// Package storage is the SQL implementation of the transaction and user
// stores. SQLite (modernc) and PostgreSQL (lib/pq) share one query set;
// sqlx rebinds placeholders per driver.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

func init() {
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// Store implements ports.TransactionStore and ports.UserStore.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// OpenSQLite opens (creating if needed) the database file at path and
// migrates it to the latest schema.
func OpenSQLite(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open(DialectSQLite.driverName(), path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialising connections avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	return open(db, DialectSQLite, path)
}

// OpenPostgres connects to url and migrates the schema.
func OpenPostgres(url string) (*Store, error) {
	db, err := sqlx.Open(DialectPostgres.driverName(), url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	return open(db, DialectPostgres, url)
}

func open(db *sqlx.DB, dialect Dialect, dsn string) (*Store, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewStore(db), nil
}

// NewStore wraps an already migrated connection.
func NewStore(db *sqlx.DB) *Store {
	dialect := DialectSQLite
	if db.DriverName() == string(DialectPostgres) {
		dialect = DialectPostgres
	}
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}
