package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/schema"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Record string
	Table  string
}

// ExplainResult is the JSON payload of the explain command.
type ExplainResult struct {
	Record string   `json:"record"`
	Kind   string   `json:"kind"`
	Key    string   `json:"key"`
	Output string   `json:"output,omitempty"`
	Stages []string `json:"stages"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query-file>",
		Short: "Show the compiled plan of a query",
		Long: `Compile a query document without running it and print its pipeline:
the resolved filter, ordering, paging, projection or aggregation, and the
output record signature.

The record type comes from --schema, or from a table of --db.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Record, "record", "", "record type (default: the schema's only record)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "database table whose record type to use")
	return cmd
}

func runExplain(opts *ExplainOptions, queryPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger(cmd.ErrOrStderr())

	q, err := loadQuery(opts.RootOptions, queryPath)
	if err != nil {
		return failQuery(formatter, err)
	}

	rt, err := explainRecord(cmd, opts)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}

	eng, err := opts.newEngine(logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to create engine", err)
	}
	plan, err := eng.Compile(rt, q)
	if err != nil {
		return failQuery(formatter, err)
	}

	text := plan.Explain()
	if formatter.Format != "json" {
		fmt.Fprint(formatter.Writer, text)
		return nil
	}

	result := ExplainResult{
		Record: rt.Name,
		Kind:   string(plan.Kind),
		Key:    plan.Key,
		Stages: strings.Split(strings.TrimSuffix(text, "\n"), "\n"),
	}
	if plan.Output != nil {
		result.Output = plan.Output.Signature()
	}
	return formatter.Success(result)
}

// explainRecord finds the record type to compile against. A schema wins
// over a database when both are configured.
func explainRecord(cmd *cobra.Command, opts *ExplainOptions) (*schema.RecordType, error) {
	if opts.Schema == "" && opts.DB != "" {
		src, err := openSource(cmd.Context(), opts.RootOptions, SourceOptions{Record: opts.Record, Table: opts.Table}, opts.logger(cmd.ErrOrStderr()))
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return src.Seq.RecordType(), nil
	}
	sch, err := loadSchema(opts.Schema)
	if err != nil {
		return nil, err
	}
	return pickRecord(sch, opts.Record)
}
