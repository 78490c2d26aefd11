// Package cli implements the schooldir command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stevemurr/school-directory/config"
	"github.com/stevemurr/school-directory/dataurl"
	"github.com/stevemurr/school-directory/school"
	"github.com/stevemurr/school-directory/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"
	LogLevel   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "schooldir",
		Short: "School directory",
		Long:  "Manage a directory of schools: add, edit, list and delete records, or serve them over HTTP.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}

// env bundles what every command needs once config is loaded.
type env struct {
	cfg     config.Config
	log     zerolog.Logger
	items   store.Store
	records *school.RecordStore
}

func (e *env) Close() error {
	return e.items.Close()
}

func openEnv(opts *RootOptions, logOut io.Writer) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger := newLogger(cfg.Logging, logOut)

	items, err := store.New(cfg.Store.Backend, cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store (backend=%s): %w", cfg.Store.Backend, err)
	}
	records := school.NewRecordStore(items,
		school.WithKey(cfg.Store.Key),
		school.WithEncoder(dataurl.NewEncoder(cfg.Image.MaxBytes)),
		school.WithLogger(logger.With().Str("component", "records").Logger()),
	)
	return &env{cfg: cfg, log: logger, items: items, records: records}, nil
}

func newLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "schooldir").Logger()
}
