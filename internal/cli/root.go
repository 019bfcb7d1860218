// Package cli builds the globeqa command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/globe-observer-qa/internal/config"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root command has loaded
// the configuration.
type app struct {
	out    io.Writer
	errOut io.Writer
	fs     afero.Fs

	newMetrics func() *observability.Metrics

	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	flags globalFlags
}

type globalFlags struct {
	start     string
	end       string
	protocols string
	input     string
	output    string
	cacheDB   string
	logLevel  string
}

// Execute runs the command line against the real filesystem and the default
// Prometheus registry.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{
		out:        out,
		errOut:     errOut,
		fs:         afero.NewOsFs(),
		newMetrics: observability.NewMetrics,
	}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "globeqa",
		Short:         "GLOBE Observer data download, quality control and paper figures",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := a.applyFlags(cmd, cfg); err != nil {
			return err
		}
		a.cfg = cfg
		a.logger = observability.NewLogger(a.errOut, cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(a.logger)
		a.metrics = a.newMetrics()
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.start, "start", "", "first day of the fetch window (YYYY-MM-DD), overrides GLOBE_START_DATE")
	pf.StringVar(&a.flags.end, "end", "", "last day of the fetch window (YYYY-MM-DD), overrides GLOBE_END_DATE")
	pf.StringVar(&a.flags.protocols, "protocols", "", "comma-separated protocols, overrides GLOBE_PROTOCOLS")
	pf.StringVarP(&a.flags.input, "input", "i", "", "read a saved payload (path or s3://bucket/key) instead of the API, overrides INPUT_PATH")
	pf.StringVarP(&a.flags.output, "output", "o", "", "output directory for figures, overrides OUTPUT_DIR")
	pf.StringVar(&a.flags.cacheDB, "cache-db", "", "SQLite observation cache, overrides CACHE_DB_PATH")
	pf.StringVarP(&a.flags.logLevel, "verbosity", "v", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newFetchCommand(a))
	cmd.AddCommand(newQCCommand(a))
	cmd.AddCommand(newStatsCommand(a))
	cmd.AddCommand(newServeCommand(a))

	return cmd
}

// applyFlags overlays the command line on the environment configuration and
// validates the result again.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("start") {
		t, err := domain.ParseDate(a.flags.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		cfg.StartDate = t
	}
	if flags.Changed("end") {
		t, err := domain.ParseDate(a.flags.end)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		cfg.EndDate = t
	}
	if flags.Changed("protocols") {
		protocols, err := domain.ParseProtocols(a.flags.protocols)
		if err != nil {
			return fmt.Errorf("invalid --protocols: %w", err)
		}
		cfg.Protocols = protocols
	}
	if flags.Changed("input") {
		cfg.InputPath = a.flags.input
	}
	if flags.Changed("output") {
		cfg.OutputDir = a.flags.output
	}
	if flags.Changed("cache-db") {
		cfg.CacheDBPath = a.flags.cacheDB
	}
	if flags.Changed("verbosity") {
		cfg.LogLevel = a.flags.logLevel
	}
	return cfg.Validate()
}
