package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/offpos/internal/connectivity"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Ready, if set, is called once the terminal has started (for testing).
	Ready func()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the terminal's background sync until interrupted",
		Long: `Run the terminal's background sync until interrupted.

The terminal probes the authority, drains queued sales on start and every
time the authority becomes reachable again, and keeps the catalog cache
current from the change stream.

Example:
  offpos run --db ./till.db --authority http://10.0.0.5:8787
  OFFPOS_SYNC_PROBE_INTERVAL=5s offpos run -v`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerminal(opts, cmd)
		},
	}

	return cmd
}

func runTerminal(opts *RunOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, err := openApp(ctx, cmd, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Error("error closing terminal", "error", closeErr)
		}
	}()

	out := cmd.OutOrStdout()
	unsubscribe := a.engine.Connectivity().Subscribe(func(_, to connectivity.State) {
		fmt.Fprintf(out, "Authority %s.\n", to)
	})
	defer unsubscribe()

	if err := a.engine.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "terminal failed to start", err)
	}

	pending, _ := a.engine.PendingCount(ctx)
	a.logger.Info("terminal running", "db", a.cfg.DB, "authority", a.cfg.Authority.URL, "pending", pending)
	fmt.Fprintf(out, "Terminal running against %s (%d pending).\n", a.cfg.Authority.URL, pending)
	fmt.Fprintln(out, "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready()
	}

	<-ctx.Done()
	a.logger.Info("terminal stopping")
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			fmt.Fprintf(cmd.ErrOrStderr(), "received %s, shutting down\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
