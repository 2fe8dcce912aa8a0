package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/bmir-radx/harmonization-framework/internal/config"
	"github.com/bmir-radx/harmonization-framework/internal/jobs"
	"github.com/bmir-radx/harmonization-framework/internal/rpc"
)

// ServeOptions holds dependencies of the serve command.
type ServeOptions struct {
	*RootOptions

	// LoadConfig reads the sidecar configuration (for testing).
	// If nil, defaults to config.Load.
	LoadConfig func() (config.Sidecar, error)

	// IDGenerator overrides job ids (for testing).
	// If nil, defaults to jobs.UUIDv7Generator.
	IDGenerator jobs.IDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the harmonization RPC sidecar",
		Long: `Start the local JSON RPC service.

Configuration comes from the environment:
  API_PORT                        port to listen on (required)
  API_HOST                        127.0.0.1 or localhost (default 127.0.0.1)
  API_LOG_PATH                    also append JSON logs to this file
  HARMONIZE_MAX_CONCURRENT_JOBS   bound on running jobs (default 0, unbounded)
  HARMONIZE_SHUTDOWN_TIMEOUT      grace period for in-flight work (default 10s)

SIGINT, SIGTERM or POST /shutdown stop the server. Running jobs are given
the shutdown timeout to finish.

Example:
  API_PORT=8765 harmonize serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	load := opts.LoadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, logCloser, err := cfg.NewLogger(cmd.OutOrStdout(), opts.level())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	defer logCloser.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orchOpts := []jobs.Option{
		jobs.WithMaxConcurrent(cfg.MaxJobs),
		jobs.WithMetrics(jobs.NewMetrics(registry)),
		jobs.WithLogger(logger),
	}
	if opts.IDGenerator != nil {
		orchOpts = append(orchOpts, jobs.WithIDGenerator(opts.IDGenerator))
	}
	orch := jobs.New(orchOpts...)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownRequested := make(chan struct{})
	var once sync.Once
	server := rpc.NewServer(rpc.NewDispatcher(orch),
		rpc.WithGatherer(registry),
		rpc.WithServerLogger(logger),
		rpc.WithShutdown(func() { once.Do(func() { close(shutdownRequested) }) }),
	)

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("listen on %s", cfg.Addr()), err)
	}
	httpServer := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()
	logger.Info("harmonization API listening", "addr", ln.Addr().String(), "max_concurrent_jobs", cfg.MaxJobs)

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case <-shutdownRequested:
		logger.Info("shutdown endpoint called, shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := orch.Wait(shutdownCtx); err != nil {
		logger.Warn("jobs still running at shutdown", "error", err)
	}

	logger.Info("harmonization API stopped")
	return nil
}
