package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/storefront-finder/internal/app"
)

func newProductsCmd(rt *cliState) *cobra.Command {
	var (
		storeURL string
		niche    string
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Ingest the product catalog of one store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if storeURL == "" {
				return fmt.Errorf("--store is required")
			}
			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Products(ctx, storeURL, niche)
				if err != nil {
					return fmt.Errorf("ingest products for %s: %w", storeURL, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %d products from %s\n", n, storeURL)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&storeURL, "store", "", "storefront URL")
	cmd.Flags().StringVar(&niche, "niche", "", "niche recorded on each product")
	return cmd
}
