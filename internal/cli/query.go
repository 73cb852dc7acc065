package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/aggregate"
	"github.com/roach88/dynq/internal/engine"
	"github.com/roach88/dynq/internal/schema"
	"github.com/roach88/dynq/internal/value"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	SourceOptions
}

// QueryResult is the JSON payload of a successful query.
type QueryResult struct {
	Seq   int64            `json:"seq"`
	Kind  string           `json:"kind"`
	Shape string           `json:"shape,omitempty"`
	Count int              `json:"count"`
	Rows  []map[string]any `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query-file>",
		Short: "Run a query document",
		Long: `Compile a YAML or JSON query document against a record type and run it.

Rows come from a data file (--data, queried in memory, needs --schema) or
from a table of a SQLite database (--db). Use "-" to read the query from
standard input.

Exit codes:
  0 - Query succeeded
  1 - Query rejected (unknown field, bad literal, invalid spec, ...)
  2 - Command error (missing files, no rows source, etc.)

Examples:
  dynq query --schema employee.cue --data employees.yaml top.yaml
  dynq query --db ./dynq.db --table employee top.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	addSourceFlags(cmd, &opts.SourceOptions)
	return cmd
}

func addSourceFlags(cmd *cobra.Command, src *SourceOptions) {
	cmd.Flags().StringVar(&src.Record, "record", "", "record type to query (default: the schema's only record)")
	cmd.Flags().StringVar(&src.Data, "data", "", "JSON or YAML file of rows to query in memory")
	cmd.Flags().StringVar(&src.Table, "table", "", "database table to query (default: the record name)")
}

func runQuery(opts *QueryOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger(cmd.ErrOrStderr())

	q, err := loadQuery(opts.RootOptions, queryPath)
	if err != nil {
		return failQuery(formatter, err)
	}

	src, err := openSource(cmd.Context(), opts.RootOptions, opts.SourceOptions, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}
	defer src.Close()
	formatter.VerboseLog("Querying %s", src.Origin)

	eng, err := opts.newEngine(logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create engine", err)
	}

	res, err := eng.Execute(cmd.Context(), src.Provider, src.Seq, q)
	if err != nil {
		return failQuery(formatter, err)
	}
	formatter.VerboseLog("Run %s (seq %d): %d row(s)", res.RunID, res.Seq, res.Len())

	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{
			Status: "ok",
			Data:   newQueryResult(res),
			RunID:  res.RunID,
		})
	}
	return writeResultText(formatter.Writer, res)
}

// loadQuery reads the query document and applies the configured default
// delimiter.
func loadQuery(opts *RootOptions, path string) (*engine.Query, error) {
	q, err := engine.LoadQuery(path)
	if err != nil {
		return nil, err
	}
	q.SetDefaultDelimiter(opts.Delimiter)
	return q, nil
}

// failQuery reports a query error. Errors the engine classifies are query
// failures; anything else (an unreadable file) is a command error.
func failQuery(formatter *OutputFormatter, err error) error {
	if code := engine.ErrorCode(err); code != "" {
		return formatter.Fail(ExitFailure, code, err.Error(), nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, err.Error(), nil)
}

func newQueryResult(res *engine.Result) QueryResult {
	out := QueryResult{
		Seq:   res.Seq,
		Kind:  string(res.Kind),
		Count: res.Len(),
		Rows:  res.Maps(),
	}
	if res.Shape != nil {
		out.Shape = res.Shape.Signature()
	}
	return out
}

// writeResultText renders the result as an aligned table followed by a row
// count.
func writeResultText(w io.Writer, res *engine.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if res.Kind == engine.KindPairs {
		writePairs(tw, res.Pairs)
	} else {
		writeRows(tw, res.Shape, res.Rows)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d row(s))\n", res.Len())
	return nil
}

func writeRows(w io.Writer, rt *schema.RecordType, rows []schema.Row) {
	if rt == nil || rt.NumField() == 0 {
		return
	}
	fmt.Fprintln(w, strings.Join(rt.FieldNames(), "\t"))
	cells := make([]string, rt.NumField())
	for _, row := range rows {
		for i := range cells {
			cells[i] = formatCell(row.At(i))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

func writePairs(w io.Writer, pairs []aggregate.GroupValuePair) {
	if len(pairs) == 0 {
		return
	}
	header := make([]string, 0, len(pairs[0].Keys)+1)
	for _, k := range pairs[0].Keys {
		header = append(header, k.KeyName)
	}
	fmt.Fprintln(w, strings.Join(append(header, "value"), "\t"))
	for _, p := range pairs {
		cells := make([]string, 0, len(p.Keys)+1)
		for _, k := range p.Keys {
			cells = append(cells, formatCell(k.KeyValue))
		}
		fmt.Fprintln(w, strings.Join(append(cells, formatCell(p.Value)), "\t"))
	}
}

func formatCell(v value.Value) string {
	if value.IsNull(v) {
		return "null"
	}
	return value.Format(v)
}
