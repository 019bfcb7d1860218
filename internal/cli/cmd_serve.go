package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/globe-observer-qa/internal/adapter/http"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/pipeline"
	"github.com/couchcryptid/globe-observer-qa/internal/render"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
)

// windowRunner is the part of the pipeline the serve loop drives.
type windowRunner interface {
	Run(ctx context.Context, w domain.Window) (pipeline.Result, error)
}

func newServeCommand(a *app) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline and serve the figures, health, readiness and metrics over HTTP",
		Long: "Run the pipeline once (or every --every) and serve /figures/, /healthz, /readyz and /metrics.\n" +
			"/readyz reports ready once a run has completed.\n" +
			"With --every and a cache database, each rerun downloads the window again and refreshes the cache.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if every < 0 {
				return errors.New("--every must not be negative")
			}
			return a.serve(cmd.Context(), every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "rerun the pipeline at this interval (0 runs once)")
	return cmd
}

func (a *app) serve(ctx context.Context, every time.Duration) error {
	p, done, err := a.newPipeline(ctx, stages{render: true, publish: true, refresh: every > 0})
	defer done.run()
	if err != nil {
		return err
	}
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, a.fs, filepath.Join(a.cfg.OutputDir, render.ImageDir), a.logger)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	{
		g.Add(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
		})
	}
	{
		runCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return runLoop(runCtx, p, a.cfg.Window(), every, a.logger)
		}, func(error) {
			cancel()
		})
	}

	err = g.Run()
	a.logger.Info("shutting down", "reason", err)
	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runLoop runs the pipeline now and then every interval until ctx ends. A
// failed run is logged and retried at the next tick; /readyz stays not ready
// until one succeeds. With a zero interval it runs once and waits.
func runLoop(ctx context.Context, p windowRunner, w domain.Window, every time.Duration, logger *slog.Logger) error {
	for {
		if _, err := p.Run(ctx, w); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("pipeline run failed", "error", err)
		}
		if every == 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		if !retry.SleepWithContext(ctx, every) {
			return ctx.Err()
		}
	}
}
