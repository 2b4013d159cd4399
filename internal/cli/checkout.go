package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/offpos/internal/model"
	"github.com/roach88/offpos/internal/sale"
)

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Submit the working cart as a sale",
		Long: `Submit the working cart as a sale.

The sale is committed to the authority if it answers, otherwise it is
queued locally and retried later with the same id. Either way the cart is
cleared. A rejected sale keeps the cart.

Exit codes:
  0  committed or queued
  1  rejected by the authority
  3  neither committed nor queued: do not hand over goods`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, checkout)
		},
	}
}

func checkout(ctx context.Context, a *app) error {
	res, err := a.engine.Checkout(ctx)
	pending, perr := a.engine.PendingCount(ctx)
	if perr != nil {
		a.logger.Warn("pending count unavailable", "error", perr)
	}
	view := checkoutView{Result: res, Total: Money(res.TotalMinor), Pending: pending}

	switch {
	case errors.Is(err, model.ErrSaleNotRecorded):
		return WrapExitError(ExitBlocked, "sale not recorded", err).WithDetails(view)
	case res.Outcome == sale.OutcomeRejected:
		return WrapExitError(ExitFailure, "sale rejected", err).WithDetails(view)
	case err != nil:
		return WrapExitError(ExitFailure, "checkout failed", err)
	}
	return a.out.Success(view)
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List sales waiting for the authority",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				sales, err := a.engine.PendingSales(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read pending sales", err)
				}
				return a.out.Success(newPendingView(sales))
			})
		},
	}
	cmd.AddCommand(newPendingDiscardCommand(rootOpts))
	return cmd
}

func newPendingDiscardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <sale-id>",
		Short: "Remove a queued sale the authority rejects",
		Long: `Remove a queued sale the authority rejects.

The sale is submitted once more first. If the authority accepts it now it
is committed; only a rejection removes it unrecorded. While the authority
is unreachable the sale is kept and the command exits 1.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				res, err := a.engine.DiscardPending(ctx, args[0])
				switch {
				case model.IsRemoteUnavailable(err):
					return WrapExitError(ExitFailure, "sale kept: authority unreachable", err)
				case err != nil:
					return WrapExitError(ExitFailure, "discard failed", err)
				}
				pending, perr := a.engine.PendingCount(ctx)
				if perr != nil {
					a.logger.Warn("pending count unavailable", "error", perr)
				}
				return a.out.Success(discardView{SaleID: args[0], Resolution: res, Pending: pending})
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Retry queued sales now",
		Long: `Retry queued sales now, oldest first.

Exits 1 if any submission failed with an unknown outcome; those sales stay
queued. Rejected sales also stay queued and are listed; remove them with
"pending discard".`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				r, err := a.engine.Drain(ctx)
				view := syncView{Report: r, Breaker: a.breaker.State()}
				if err != nil {
					return WrapExitError(ExitFailure, "sync failed", err).WithDetails(view)
				}
				if r.Failed > 0 {
					return NewExitError(ExitFailure, "some sales could not be submitted").WithDetails(view)
				}
				return a.out.Success(view)
			})
		},
	}
}
