package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/app"
	"github.com/JakeFAU/storefront-finder/internal/config"
	"github.com/JakeFAU/storefront-finder/internal/logging"
)

// appFactory builds the pipeline for a loaded config. Tests swap in fakes.
type appFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error)

func defaultAppFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// cliState is populated by the root command's pre-run hook.
type cliState struct {
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
	newApp  appFactory
}

func newRootCmd(factory appFactory) *cobra.Command {
	rt := &cliState{newApp: factory}

	cmd := &cobra.Command{
		Use:   "storefinder",
		Short: "Discover storefronts for a niche and record where they are.",
		Long: `storefinder searches for storefronts hosted on the platform's native domain,
resolves each hit to its canonical domain, infers the store's location and
upserts the result into the configured database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(rt.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
				MaxBackups:  cfg.Logging.MaxBackups,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.logger != nil {
				if err := rt.logger.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
					fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "path to a config file (yaml, json or toml)")
	cmd.AddCommand(newDiscoverCmd(rt), newProductsCmd(rt))
	return cmd
}

// withApp builds the app, serves the ops endpoints when configured and runs
// fn. The ops server stops when fn returns.
func (rt *cliState) withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := rt.newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			rt.logger.Warn("close application", zap.Error(cerr))
		}
	}()

	opsCtx, cancelOps := context.WithCancel(ctx)
	opsDone := make(chan struct{})
	go func() {
		defer close(opsDone)
		if err := a.ServeOps(opsCtx, rt.cfg.Metrics.Addr); err != nil {
			rt.logger.Error("ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		cancelOps()
		<-opsDone
	}()

	return fn(ctx, a)
}
