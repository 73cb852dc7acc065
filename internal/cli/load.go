package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Record  string
	Table   string
	Replace bool
}

// LoadResult is the JSON payload of the load command.
type LoadResult struct {
	Table     string `json:"table"`
	Record    string `json:"record"`
	Signature string `json:"signature"`
	Rows      int    `json:"rows"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <data-file>",
		Short: "Load rows into a SQLite table",
		Long: `Read a JSON or YAML list of rows, coerce them to a record type of the
schema and insert them into a table of the database, creating both when
they do not exist. Loading into an existing table appends; --replace drops
it first.

Only records of scalar fields can be stored.

Example:
  dynq load --schema employee.cue --db ./dynq.db employees.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Record, "record", "", "record type of the rows (default: the schema's only record)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table to load into (default: the record name)")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "drop the table before loading")
	return cmd
}

func runLoad(opts *LoadOptions, dataPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger(cmd.ErrOrStderr())
	ctx := cmd.Context()

	if opts.DB == "" {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "a database is required (--db or db in dynq.yaml)", nil)
	}

	sch, err := loadSchema(opts.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}
	rt, err := pickRecord(sch, opts.Record)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}
	rows, err := engine.LoadRows(dataPath, rt)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load rows", err)
	}

	// Open database (create if not exists)
	st, err := store.Open(opts.DB, store.WithLogger(logger))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	table := tableName(opts.Table, rt)
	if opts.Replace {
		if err := st.DropTable(ctx, table); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to drop table", err)
		}
	}
	if err := st.CreateTable(ctx, table, rt); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to create table", err)
	}
	if err := st.Insert(ctx, table, rows); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to insert rows", err)
	}
	logger.Debug("rows loaded", "db", opts.DB, "table", table, "record", rt.Name, "rows", len(rows))

	result := LoadResult{Table: table, Record: rt.Name, Signature: rt.Signature(), Rows: len(rows)}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Loaded %d row(s) into %s (record %s)\n", result.Rows, result.Table, result.Record)
	return nil
}
