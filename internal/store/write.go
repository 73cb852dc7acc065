package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/querysql"
	"github.com/roach88/dynq/internal/schema"
)

// CreateTable creates a table holding rows of rt and records it in the
// catalog. Creating an existing table with the same record signature is a
// no-op; a different signature is an error.
func (s *Store) CreateTable(ctx context.Context, name string, rt *schema.RecordType) error {
	if name == "" {
		return fmt.Errorf("create table: empty name")
	}
	if strings.HasPrefix(name, "dynq_") {
		return fmt.Errorf("create table %s: names starting with dynq_ are reserved", name)
	}
	if !rt.Scalar() {
		return fmt.Errorf("create table %s: record %s has list or nested record fields", name, rt.Name)
	}

	existing, err := s.RecordType(ctx, name)
	switch {
	case err == nil:
		if existing.Signature() != rt.Signature() {
			return fmt.Errorf("create table %s: exists with fields %s, not %s", name, existing.Signature(), rt.Signature())
		}
		return nil
	case !errors.Is(err, ErrTableNotFound):
		return err
	}

	ddl, err := createTableSQL(name, rt)
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	fieldsJSON, err := marshalFields(rt)
	if err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO dynq_tables (name, record, signature, fields)
		VALUES (?, ?, ?, ?)
	`, name, rt.Name, rt.Signature(), fieldsJSON)
	if err != nil {
		return fmt.Errorf("register table %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.mu.Lock()
	s.tables[name] = rt
	s.mu.Unlock()

	s.logger.Debug("created table", "table", name, "record", rt.Name, "signature", rt.Signature())
	return nil
}

// DropTable removes a table and its catalog entry. Dropping a missing table
// is not an error.
func (s *Store) DropTable(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+querysql.QuoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dynq_tables WHERE name = ?", name); err != nil {
		return fmt.Errorf("unregister table %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.mu.Lock()
	delete(s.tables, name)
	s.mu.Unlock()
	return nil
}

// Insert appends rows to a table in one transaction. Every row must be of
// the table's record type (or a structurally identical one).
func (s *Store) Insert(ctx context.Context, name string, rows []schema.Row) error {
	rt, err := s.RecordType(ctx, name)
	if err != nil {
		return err
	}
	for i, row := range rows {
		if err := engine.CheckRecord("insert", rt, row.Type()); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	cols := make([]string, len(rt.Fields))
	marks := make([]string, len(rt.Fields))
	for i, f := range rt.Fields {
		cols[i] = querysql.QuoteIdent(f.Name)
		marks[i] = "?"
	}
	stmtSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		querysql.QuoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		params, err := marshalRow(row)
		if err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, params...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.logger.Debug("inserted rows", "table", name, "rows", len(rows))
	return nil
}

// ErrTableNotFound is returned for tables missing from the catalog.
var ErrTableNotFound = errors.New("table not found")

// RecordType returns the record type of a table.
func (s *Store) RecordType(ctx context.Context, name string) (*schema.RecordType, error) {
	s.mu.RLock()
	rt, ok := s.tables[name]
	s.mu.RUnlock()
	if ok {
		return rt, nil
	}

	var record, fieldsJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT record, fields FROM dynq_tables WHERE name = ?", name,
	).Scan(&record, &fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog for %s: %w", name, err)
	}

	rt, err = unmarshalFields(record, fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another reader may have loaded it first; keep one instance per table.
	if cached, ok := s.tables[name]; ok {
		return cached, nil
	}
	s.tables[name] = rt
	return rt, nil
}
