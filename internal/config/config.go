// Package config loads dynq settings from defaults, a dynq.yaml file,
// DYNQ_ environment variables and command-line flags.
//
// Precedence, highest first:
//  1. flags that were set on the command line
//  2. environment variables (DYNQ_PLAN_CACHE_SIZE, ...)
//  3. the config file
//  4. defaults
//
// Flag names use dashes and keys use underscores; --plan-cache-size binds
// to plan_cache_size.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DYNQ"

// FileName is the config file name searched for when none is given.
const FileName = "dynq"

// Keys.
const (
	KeyFormat        = "format"
	KeyVerbose       = "verbose"
	KeySchema        = "schema"
	KeyDB            = "db"
	KeyPlanCacheSize = "plan_cache_size"
	KeyDelimiter     = "delimiter"
)

// Config holds resolved settings.
type Config struct {
	// Format is the CLI output format, "text" or "json".
	Format string `mapstructure:"format"`

	// Verbose enables debug logging on stderr.
	Verbose bool `mapstructure:"verbose"`

	// Schema is the path of a CUE file declaring record types.
	Schema string `mapstructure:"schema"`

	// DB is the path of the SQLite database. Empty means rows are read from
	// a data file and queried in memory.
	DB string `mapstructure:"db"`

	// PlanCacheSize bounds the compiled-plan cache. Zero uses the engine
	// default; a negative size disables caching.
	PlanCacheSize int `mapstructure:"plan_cache_size"`

	// Delimiter is the default value list delimiter for *inlist filters.
	Delimiter string `mapstructure:"delimiter"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// ValidFormats are the accepted output formats.
var ValidFormats = []string{"text", "json"}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Config {
	return Config{
		Format:    "text",
		Delimiter: ",",
	}
}

// Load resolves settings. flags may be nil. An explicit path must exist;
// without one, dynq.yaml is searched for in the working directory and its
// absence is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	def := Defaults()
	v.SetDefault(KeyFormat, def.Format)
	v.SetDefault(KeyVerbose, def.Verbose)
	v.SetDefault(KeySchema, def.Schema)
	v.SetDefault(KeyDB, def.DB)
	v.SetDefault(KeyPlanCacheSize, def.PlanCacheSize)
	v.SetDefault(KeyDelimiter, def.Delimiter)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindFlags binds every known key that has a matching flag.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKey(key) || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	if err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}

func isKey(key string) bool {
	switch key {
	case KeyFormat, KeyVerbose, KeySchema, KeyDB, KeyPlanCacheSize, KeyDelimiter:
		return true
	}
	return false
}

// Validate checks settings that have a closed set of values.
func (c Config) Validate() error {
	if !IsValidFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("delimiter must not be empty")
	}
	return nil
}

// IsValidFormat reports whether format is one of ValidFormats.
func IsValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
