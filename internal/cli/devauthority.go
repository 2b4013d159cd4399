package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/offpos/internal/devauthority"
	"github.com/roach88/offpos/internal/model"
)

// DevAuthorityOptions holds flags for the dev-authority command.
type DevAuthorityOptions struct {
	*RootOptions
	Listen string
	Seed   string

	// Ready, if set, receives the bound address once serving (for testing).
	Ready func(addr string)
}

// NewDevAuthorityCommand creates the dev-authority command.
func NewDevAuthorityCommand(rootOpts *RootOptions) *cobra.Command {
	return newDevAuthorityCommand(&DevAuthorityOptions{RootOptions: rootOpts})
}

func newDevAuthorityCommand(opts *DevAuthorityOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-authority",
		Short: "Serve an in-memory reference authority",
		Long: `Serve an in-memory reference authority for development.

It commits sales idempotently by id, checks stock, serves the catalog and
today's revenue, and pushes change notifications over a websocket.

Example:
  offpos dev-authority --listen 127.0.0.1:8787 --seed products.yaml`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveDevAuthority(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "127.0.0.1:8787", "address to listen on")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "YAML file with the initial products")

	return cmd
}

func serveDevAuthority(opts *DevAuthorityOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	cfg, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	logger := cfg.Logger(cmd.ErrOrStderr()).With("component", "dev-authority")

	var products []model.Product
	if opts.Seed != "" {
		products, err = devauthority.LoadSeed(opts.Seed)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
	} else {
		products = devauthority.DefaultProducts()
	}

	srv := devauthority.New(devauthority.WithProducts(products), devauthority.WithLogger(logger))
	defer srv.Close()

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpSrv := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.Serve(ln) }()

	addr := ln.Addr().String()
	logger.Info("serving", "addr", addr, "products", len(products))
	fmt.Fprintf(cmd.OutOrStdout(), "Dev authority listening on http://%s\n", addr)
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	select {
	case err := <-serveErr:
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	// Websocket streams are hijacked and not tracked by Shutdown.
	srv.Close()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("stopped")
	return nil
}
