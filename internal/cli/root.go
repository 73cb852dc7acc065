package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dynq/internal/config"
	"github.com/roach88/dynq/internal/engine"
)

// RootOptions holds global flags for all commands, after config resolution.
type RootOptions struct {
	Verbose       bool
	Format        string // "json" | "text"
	ConfigFile    string
	Schema        string
	DB            string
	PlanCacheSize int
	Delimiter     string

	// RunIDs overrides the run ID generator (for testing).
	// If nil, defaults to engine.UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = config.ValidFormats

// NewRootCommand creates the root command for the dynq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dynq",
		Short: "dynq - dynamic query specifications",
		Long: `Compile runtime query documents (filters, projections, sorting, paging,
grouping and aggregation) against CUE record schemas and run them over
in-memory rows or a SQLite database.

Settings come from flags, DYNQ_* environment variables and dynq.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			opts.apply(cfg)
			return nil
		},
	}

	def := config.Defaults()

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", def.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", def.Format, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./dynq.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", def.Schema, "CUE schema file declaring records")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", def.DB, "path to SQLite database")
	cmd.PersistentFlags().IntVar(&opts.PlanCacheSize, "plan-cache-size", def.PlanCacheSize, "compiled plan cache size (0 default, <0 disabled)")
	cmd.PersistentFlags().StringVar(&opts.Delimiter, "delimiter", def.Delimiter, "default value list delimiter for *inlist filters")

	// Add subcommands
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// apply copies resolved settings into the options.
func (o *RootOptions) apply(cfg config.Config) {
	o.Verbose = cfg.Verbose
	o.Format = cfg.Format
	o.Schema = cfg.Schema
	o.DB = cfg.DB
	o.PlanCacheSize = cfg.PlanCacheSize
	o.Delimiter = cfg.Delimiter
}

// logger returns a text logger on w, at debug level when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine builds an engine from the options.
func (o *RootOptions) newEngine(logger *slog.Logger) (*engine.Engine, error) {
	engineOpts := []engine.EngineOption{
		engine.WithPlanCacheSize(o.PlanCacheSize),
		engine.WithLogger(logger),
	}
	if o.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(o.RunIDs))
	}
	return engine.New(engineOpts...)
}

