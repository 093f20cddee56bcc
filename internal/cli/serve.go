package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/loadmix/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SourceFlags
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compositions over HTTP",
		Long: `Start the HTTP service.

Routes:
  POST /process   compose the JSON request body; responds with custom_output.csv
  GET  /health    liveness probe
  GET  /metrics   Prometheus metrics

Tables are read from the configured database when one is set, otherwise from
the data directory. With a database every request is recorded in the run log.

Example:
  loadmix serve --listen :8080 --data-dir ./files
  loadmix serve --config loadmix.cue --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	addSourceFlags(cmd, &opts.SourceFlags)

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, opts.SourceFlags, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing database", "error", closeErr)
		}
	}()

	metrics := server.NewMetrics()
	eng, err := e.engine(metrics, nil)
	if err != nil {
		return err
	}

	addr := e.cfg.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}
	srvOpts := server.Options{
		Addr:      addr,
		Metrics:   metrics,
		Logger:    e.logger,
		AccessLog: cmd.ErrOrStderr(),
	}
	if e.store != nil {
		srvOpts.RunLog = e.store
	}
	srv := server.New(eng, srvOpts)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	e.logger.Info("service starting", "addr", addr, "data_dir", e.cfg.DataDir, "database", e.cfg.Database)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := srv.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	e.logger.Info("service stopped gracefully")
	return nil
}
