package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/vehicle-crash-etl/internal/adapter/http"
	"github.com/couchcryptid/vehicle-crash-etl/internal/config"
	"github.com/couchcryptid/vehicle-crash-etl/internal/domain"
	"github.com/couchcryptid/vehicle-crash-etl/internal/observability"
	"github.com/couchcryptid/vehicle-crash-etl/internal/pipeline"
	"github.com/couchcryptid/vehicle-crash-etl/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "etl",
		Short:         "Load Montgomery County crash reports into the vehicle-crash warehouse",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newRunCmd() *cobra.Command {
	var start, end, message string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single batch",
		Long: "Run a single batch. Without --start and --end the window is the month after the\n" +
			"last recorded update.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := pipeline.Request{Message: message}
			if start != "" || end != "" {
				if start == "" || end == "" {
					return errors.New("--start and --end must be given together")
				}
				w, err := domain.ParseWindow(start, end)
				if err != nil {
					return err
				}
				req.Window = &w
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger, observability.NewMetrics(), req.Window == nil)
			if err != nil {
				logger.Error("failed to start", "error", err)
				return err
			}
			defer a.Close()

			res, err := a.pipeline.Run(ctx, req)
			if err != nil {
				return err
			}
			for _, l := range res.Loads {
				logger.Info("table done", "run_id", res.RunID, "table", l.Table, "rows", l.Rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", `window start, e.g. "2015-08-01 00:00:00"`)
	cmd.Flags().StringVar(&end, "end", "", `window end, e.g. "2015-08-31 23:00:00"`)
	cmd.Flags().StringVar(&message, "message", "", "update message recorded in Metadata")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health and metrics endpoints and run regular updates on SCHEDULE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// abortGrace bounds the wait for batches cancelled at shutdown.
const abortGrace = 5 * time.Second

func serve(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, observability.NewMetrics(), true)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer a.Close()

	// Batches outlive the signal and are cancelled only once the shutdown
	// timeout has passed.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	sched := scheduler.New(logger)
	if err := sched.Schedule(runCtx, cfg.Schedule, "regular-update", func(ctx context.Context) error {
		_, err := a.pipeline.Run(ctx, pipeline.Request{})
		return err
	}); err != nil {
		return err
	}

	srv := httpadapter.NewServer(runCtx, cfg.HTTPAddr, a.pipeline, a.pipeline, logger)

	// Start HTTP server.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sched.Start()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("http server error", "error", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	drained := true
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", "error", err)
		drained = false
	}
	if err := a.pipeline.Wait(shutdownCtx); err != nil {
		logger.Error("triggered batch shutdown error", "error", err)
		drained = false
	}
	if !drained {
		cancelRuns()
		abortCtx, cancelAbort := context.WithTimeout(context.Background(), abortGrace)
		defer cancelAbort()
		if err := sched.Stop(abortCtx); err != nil {
			logger.Error("scheduled batch did not stop after cancellation", "error", err)
		}
		if err := a.pipeline.Wait(abortCtx); err != nil {
			logger.Error("batch did not stop after cancellation", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return err
}
