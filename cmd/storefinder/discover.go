package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/app"
)

func newDiscoverCmd(rt *cliState) *cobra.Command {
	var (
		niche      string
		maxResults int
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Search for stores in a niche and persist them",
		Long: `Runs one discovery pass: pages through search results for the niche,
canonicalizes each storefront, infers its location and upserts the stores.
With products.enabled the persisted stores' catalogs are ingested afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("niche") {
				rt.cfg.Discovery.Niche = niche
			}
			if cmd.Flags().Changed("max-results") {
				rt.cfg.Discovery.MaxResults = maxResults
			}
			if rt.cfg.Discovery.MaxResults <= 0 {
				return fmt.Errorf("--max-results must be > 0")
			}
			if err := rt.cfg.ValidateDiscovery(); err != nil {
				return err
			}

			return rt.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, err := a.Run(ctx, rt.cfg.Discovery.Niche, rt.cfg.Discovery.MaxResults)
				if err != nil {
					return err
				}
				rt.logger.Info("discovery run complete",
					zap.String("run_id", summary.RunID),
					zap.Int("discovered", summary.Discovered),
					zap.Int("persisted", summary.Persisted),
					zap.Int("products", summary.ProductsIngested),
				)
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: discovered %d, persisted %d, skipped %d\n",
					summary.RunID, summary.Discovered, summary.Persisted, summary.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&niche, "niche", "", "niche to search for (overrides discovery.niche)")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "upper bound on search results requested (overrides discovery.max_results)")
	return cmd
}
