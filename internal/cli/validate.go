package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Records []string                   `json:"records,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema.cue]",
		Short: "Validate a record schema",
		Long: `Validate a CUE record schema without running any query.

Reports every problem found: unknown types, bad foreign keys, invalid names
and records that contain each other. Defaults to the configured --schema.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Schema
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if path == "" {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, "no schema given", nil)
	}
	if _, err := os.Stat(path); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("schema file not found: %s", path), nil)
	}

	formatter.VerboseLog("Validating %s", path)
	sch, err := compiler.LoadSchema(path)
	if err != nil {
		return outputValidationErrors(formatter, validationErrors(err))
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Records: sch.Names()})
	}
	fmt.Fprintf(formatter.Writer, "✓ Schema valid (%d record(s))\n", len(sch.Records))
	return nil
}

// validationErrors converts a schema error into validation errors.
func validationErrors(err error) []compiler.ValidationError {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		line := 0
		if cerr.Pos.IsValid() {
			line = cerr.Pos.Line()
		}
		return []compiler.ValidationError{{
			Field:   cerr.Field,
			Message: cerr.Message,
			Code:    ErrCodeSchema,
			Line:    line,
		}}
	}
	return []compiler.ValidationError{{Field: "schema", Message: err.Error(), Code: ErrCodeGeneric}}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
