package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show, search and refresh the cached catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the cached catalog without contacting the authority",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, a *app) error {
				snap := a.engine.Catalog()
				return a.out.Success(newCatalogView(snap, snap.Products()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Search cached products by name (case-insensitive)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(_ context.Context, a *app) error {
				snap := a.engine.Catalog()
				return a.out.Success(newCatalogView(snap, snap.Search(args[0])))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Fetch the catalog and today's revenue from the authority",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.engine.RefreshCatalog(ctx); err != nil {
					snap := a.engine.Catalog()
					return WrapExitError(ExitFailure, "catalog refresh failed", err).
						WithDetails(newCatalogView(snap, snap.Products()))
				}
				snap := a.engine.Catalog()
				return a.out.Success(newCatalogView(snap, snap.Products()))
			})
		},
	})

	return cmd
}
