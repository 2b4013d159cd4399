package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/offpos/internal/cart"
)

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the working cart",
		Long: `Show and edit the working cart.

The cart is stored locally and survives restarts. Editing it never needs
the authority; products are looked up in the cached catalog.

Example:
  offpos cart add p-coffee --qty 2
  offpos cart scan 4006381333948
  offpos cart show --format json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the working cart",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, a *app) error {
				return a.out.Success(newCartView(a.engine.Cart()))
			})
		},
	})

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a catalog product to the cart",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if qty < 1 {
				return NewExitError(ExitCommandError, "--qty must be at least 1")
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				c, err := a.engine.AddProduct(ctx, args[0])
				if err == nil && qty > 1 {
					c, err = a.engine.MutateCart(ctx, cart.Op{Kind: cart.OpAdjust, ProductID: args[0], Delta: qty - 1})
				}
				if err != nil {
					return WrapExitError(ExitFailure, "cart add failed", err)
				}
				return a.out.Success(newCartView(c))
			})
		},
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "scan <barcode>",
		Short: "Add the product with the given barcode",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				p, c, err := a.engine.ScanBarcode(ctx, args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "cart scan failed", err)
				}
				a.out.VerboseLog("scanned %s: %s", args[0], p.Name)
				return a.out.Success(newCartView(c))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line from the cart",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, rootOpts, cart.Op{Kind: cart.OpRemove, ProductID: args[0]})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "qty <product-id> <quantity>",
		Short: "Set the quantity of a cart line (minimum 1)",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]), err)
			}
			return mutate(cmd, rootOpts, cart.Op{Kind: cart.OpSetQuantity, ProductID: args[0], Quantity: n})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, rootOpts, cart.Op{Kind: cart.OpClear})
		},
	})

	return cmd
}

func mutate(cmd *cobra.Command, rootOpts *RootOptions, op cart.Op) error {
	return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
		c, err := a.engine.MutateCart(ctx, op)
		if err != nil {
			return WrapExitError(ExitFailure, "cart "+string(op.Kind)+" failed", err)
		}
		return a.out.Success(newCartView(c))
	})
}
