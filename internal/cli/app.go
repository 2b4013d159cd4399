package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/offpos/internal/config"
	"github.com/roach88/offpos/internal/engine"
	"github.com/roach88/offpos/internal/remote"
	"github.com/roach88/offpos/internal/store"
)

// app is one terminal process: config, local store, authority client and
// engine, opened for the duration of a command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	breaker *remote.Breaker
	engine  *engine.Engine
	out     *OutputFormatter
}

func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:    opts.ConfigFile,
		Flags:   cmd.Flags(),
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newAuthority builds the authority stack: HTTP client, per-call deadline,
// then the circuit breaker so deadlines count as failures.
func newAuthority(cfg *config.Config, logger *slog.Logger) (*remote.Breaker, error) {
	client, err := remote.NewClient(cfg.Authority.URL,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Authority.Timeout}),
		remote.WithResubscribeDelay(cfg.Sync.ResubscribeDelay),
		remote.WithLogger(logger.With("component", "remote")),
	)
	if err != nil {
		return nil, err
	}
	return remote.NewBreaker(remote.WithTimeout(client, cfg.Authority.Timeout), remote.BreakerSettings{
		Failures: uint32(cfg.Authority.BreakerFailures),
		Cooldown: cfg.Authority.BreakerCooldown,
		Logger:   logger.With("component", "breaker"),
	}), nil
}

// openApp loads config, opens the store and opens (but does not start) the
// engine. With probe set the engine probes connectivity at
// sync.probe_interval once started.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions, probe bool) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger(cmd.ErrOrStderr())

	authority, err := newAuthority(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid authority URL", err)
	}

	logger.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var interval time.Duration
	if probe {
		interval = cfg.Sync.ProbeInterval
	}
	eng := engine.New(st, authority,
		engine.WithLogger(logger),
		engine.WithProbeInterval(interval),
	)
	if err := eng.Open(ctx); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open terminal", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		breaker: authority,
		engine:  eng,
		out:     formatter(cmd, opts),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.engine.Close(), a.store.Close())
}

// withApp opens the app, runs fn and closes the app. A close failure is
// logged; fn's error wins.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts, false)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.logger.Error("error closing terminal", "error", closeErr)
		}
	}()
	return fn(ctx, a)
}
