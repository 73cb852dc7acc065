package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/dynq/internal/compiler"
	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/store"
)

// LoadError represents a failure to assemble what a command operates on:
// the schema, the record type, the rows or the database.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SourceOptions selects the rows a query runs over.
type SourceOptions struct {
	Record string // record type name; optional when the schema has one record
	Data   string // JSON or YAML row file, "-" for stdin
	Table  string // database table; defaults to the record name in lower case
}

// Source is a query target: a sequence of rows and the provider that runs
// stages over it.
type Source struct {
	Provider engine.Provider
	Seq      engine.Sequence
	Origin   string // "memory:<file>" or "sqlite:<db>/<table>"

	closer func() error
}

// Close releases the database, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// loadSchema compiles the CUE schema at path.
func loadSchema(path string) (*compiler.Schema, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeUsage, Message: "a schema is required (--schema or schema in dynq.yaml)"}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %s", path)}
	}
	sch, err := compiler.LoadSchema(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: "failed to compile schema", Err: err}
	}
	return sch, nil
}

// pickRecord returns the named record, or the only record when name is
// empty.
func pickRecord(sch *compiler.Schema, name string) (*schema.RecordType, error) {
	if name == "" {
		if len(sch.Records) != 1 {
			return nil, &LoadError{
				Code:    ErrCodeUsage,
				Message: fmt.Sprintf("--record is required: schema declares %s", strings.Join(sch.Names(), ", ")),
			}
		}
		return sch.Records[0], nil
	}
	rt, ok := sch.Record(name)
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("schema has no record %q (have %s)", name, strings.Join(sch.Names(), ", ")),
		}
	}
	return rt, nil
}

// tableName returns the table for a record when none was named.
func tableName(table string, rt *schema.RecordType) string {
	if table != "" {
		return table
	}
	return strings.ToLower(rt.Name)
}

// openSource opens the rows a query runs over. A data file is read into
// memory and needs the schema; a database table carries its own record
// type, so the schema is only consulted to name the table.
func openSource(ctx context.Context, opts *RootOptions, src SourceOptions, logger *slog.Logger) (*Source, error) {
	switch {
	case src.Data != "":
		sch, err := loadSchema(opts.Schema)
		if err != nil {
			return nil, err
		}
		rt, err := pickRecord(sch, src.Record)
		if err != nil {
			return nil, err
		}
		rows, err := engine.LoadRows(src.Data, rt)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "failed to load rows", Err: err}
		}
		logger.Debug("loaded rows", "file", src.Data, "record", rt.Name, "rows", len(rows))
		return &Source{
			Provider: engine.MemoryProvider{},
			Seq:      engine.NewRows(rt, rows),
			Origin:   "memory:" + src.Data,
		}, nil

	case opts.DB != "":
		if _, err := os.Stat(opts.DB); err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.DB)}
		}
		st, err := store.Open(opts.DB, store.WithLogger(logger))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeStore, Message: "failed to open database", Err: err}
		}

		name, err := resolveTable(ctx, st, opts, src)
		if err != nil {
			st.Close()
			return nil, err
		}
		table, err := st.Table(ctx, name)
		if err != nil {
			st.Close()
			if errors.Is(err, store.ErrTableNotFound) {
				return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("table not found: %s", name)}
			}
			return nil, &LoadError{Code: ErrCodeStore, Message: "failed to read table", Err: err}
		}
		logger.Debug("opened table", "db", opts.DB, "table", name, "record", table.RecordType().Name)
		return &Source{
			Provider: st,
			Seq:      table,
			Origin:   "sqlite:" + opts.DB + "/" + name,
			closer:   st.Close,
		}, nil

	default:
		return nil, &LoadError{Code: ErrCodeUsage, Message: "no rows to query: pass --data or --db"}
	}
}

// resolveTable names the table to query: --table, else the record's
// table, else the only table in the database.
func resolveTable(ctx context.Context, st *store.Store, opts *RootOptions, src SourceOptions) (string, error) {
	if src.Table != "" {
		return src.Table, nil
	}
	if src.Record != "" {
		if opts.Schema == "" {
			return strings.ToLower(src.Record), nil
		}
		sch, err := loadSchema(opts.Schema)
		if err != nil {
			return "", err
		}
		rt, err := pickRecord(sch, src.Record)
		if err != nil {
			return "", err
		}
		return tableName("", rt), nil
	}

	tables, err := st.Tables(ctx)
	if err != nil {
		return "", &LoadError{Code: ErrCodeStore, Message: "failed to list tables", Err: err}
	}
	if len(tables) != 1 {
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Name
		}
		return "", &LoadError{
			Code:    ErrCodeUsage,
			Message: fmt.Sprintf("--table is required: database has %d table(s) [%s]", len(tables), strings.Join(names, ", ")),
		}
	}
	return tables[0].Name, nil
}

// loadErrorCode returns the code of a LoadError, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// loadErrorMessage returns err's message without its code prefix.
func loadErrorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Err != nil {
			return fmt.Sprintf("%s: %v", loadErr.Message, loadErr.Err)
		}
		return loadErr.Message
	}
	return err.Error()
}
