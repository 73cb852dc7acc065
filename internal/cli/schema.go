package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/compiler"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Output string // output file path
}

// RecordInfo describes one compiled record type.
type RecordInfo struct {
	Name      string      `json:"name"`
	Signature string      `json:"signature"`
	Fields    []FieldInfo `json:"fields"`
}

// FieldInfo describes one field of a record type.
type FieldInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ForeignKey string `json:"foreign_key,omitempty"`
}

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Records []RecordInfo `json:"records"`
	Output  string       `json:"output,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema [schema.cue]",
		Short: "Compile a schema and print its record types",
		Long: `Compile a CUE record schema and print every record type with its fields
and signature. With --output, the compiled records are also written to a
JSON file. Defaults to the configured --schema.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Schema
			if len(args) == 1 {
				path = args[0]
			}
			return runSchema(opts, path, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write compiled records as JSON to this file")
	return cmd
}

func runSchema(opts *SchemaOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	sch, err := loadSchema(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), loadErrorMessage(err), nil)
	}
	records := describeSchema(sch)

	if opts.Output != "" {
		if err := writeRecordsToFile(records, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		formatter.VerboseLog("Wrote %d record(s) to %s", len(records), opts.Output)
	}

	if formatter.Format == "json" {
		return formatter.Success(SchemaResult{Records: records, Output: opts.Output})
	}

	w := formatter.Writer
	for i, r := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "record %s\n", r.Name)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, f := range r.Fields {
			if f.ForeignKey != "" {
				fmt.Fprintf(tw, "  %s\t%s\t(key %s)\n", f.Name, f.Type, f.ForeignKey)
			} else {
				fmt.Fprintf(tw, "  %s\t%s\t\n", f.Name, f.Type)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "  signature: %s\n", r.Signature)
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWritten to %s\n", opts.Output)
	}
	return nil
}

// describeSchema lists the records in declaration order.
func describeSchema(sch *compiler.Schema) []RecordInfo {
	records := make([]RecordInfo, len(sch.Records))
	for i, rt := range sch.Records {
		info := RecordInfo{Name: rt.Name, Signature: rt.Signature()}
		for _, f := range rt.Fields {
			info.Fields = append(info.Fields, FieldInfo{
				Name:       f.Name,
				Type:       f.Type.Name(),
				ForeignKey: f.ForeignKey,
			})
		}
		records[i] = info
	}
	return records
}

// writeRecordsToFile writes the records as indented JSON.
func writeRecordsToFile(records []RecordInfo, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
