package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/dynq/internal/querysql"
	"github.com/roach88/dynq/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// connPragmas configure every connection. WAL lets readers run while a load
// is writing; the busy timeout absorbs short lock waits.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// migrations run in order on databases whose user_version is below their
// position plus one. Append only.
var migrations = []string{
	// 1: TablesFor looks tables up by record type name.
	`CREATE INDEX IF NOT EXISTS idx_dynq_tables_record ON dynq_tables(record)`,
}

// Store keeps typed data tables in SQLite, each registered in the
// dynq_tables catalog together with its record type, and serves them as
// query sequences.
//
// Store is safe for concurrent use. Record types read from the catalog are
// cached and shared between tables.
type Store struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	logger   *slog.Logger

	mu     sync.RWMutex
	tables map[string]*schema.RecordType
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger that receives executed SQL at debug level.
// By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open opens the database at path, creating it when missing, and brings its
// catalog up to date. Opening the same file again is harmless.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps SQLite's one-writer rule out of our way.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	steps := []struct {
		name string
		run  func(*sql.DB) error
	}{
		{"connect", func(db *sql.DB) error { return db.Ping() }},
		{"configure", configure},
		{"create catalog", createCatalog},
		{"migrate", migrate},
	}
	for _, step := range steps {
		if err := step.run(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	s := &Store{
		db:       db,
		compiler: querysql.NewSQLCompiler(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tables:   make(map[string]*schema.RecordType),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// query runs a compiled SELECT. The caller closes the rows.
func (s *Store) query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	s.logger.Debug("sql", "query", stmt, "params", len(args))
	return s.db.QueryContext(ctx, stmt, args...)
}

func configure(db *sql.DB) error {
	for _, p := range connPragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%q: %w", p, err)
		}
	}
	return nil
}

func createCatalog(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	if version >= len(migrations) {
		return nil
	}
	// PRAGMA does not take bound parameters.
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)))
	return err
}

// pragma reads the current value of a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var v string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&v); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}
