// Package app wires configuration into the discovery pipeline and owns the
// long-lived services a run needs.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/api"
	"github.com/JakeFAU/storefront-finder/internal/canonical"
	"github.com/JakeFAU/storefront-finder/internal/catalog"
	"github.com/JakeFAU/storefront-finder/internal/config"
	"github.com/JakeFAU/storefront-finder/internal/discovery"
	collyfetcher "github.com/JakeFAU/storefront-finder/internal/fetcher/colly"
	"github.com/JakeFAU/storefront-finder/internal/id/uuid"
	"github.com/JakeFAU/storefront-finder/internal/location"
	"github.com/JakeFAU/storefront-finder/internal/logging"
	"github.com/JakeFAU/storefront-finder/internal/policy/ratelimit"
	"github.com/JakeFAU/storefront-finder/internal/search/serpapi"
	"github.com/JakeFAU/storefront-finder/internal/storage"
	"github.com/JakeFAU/storefront-finder/internal/storage/memory"
	pgstore "github.com/JakeFAU/storefront-finder/internal/storage/postgres"
	"github.com/JakeFAU/storefront-finder/internal/storage/sqlite"
)

// Fetcher is the storefront HTTP client shared by canonicalization, location
// inference and catalog ingestion.
type Fetcher interface {
	discovery.Getter
	discovery.PageFetcher
}

// Deps are the externally facing collaborators of an App.
type Deps struct {
	Search     discovery.SearchProvider
	Storefront Fetcher
	Backend    storage.Backend
	Clock      discovery.Clock
	Pauser     discovery.Pauser
	IDs        IDGenerator
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	NewID() string
}

// App holds the assembled pipeline.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	backend    storage.Backend
	discoverer *discovery.Discoverer
	scraper    *catalog.Scraper
	clock      discovery.Clock
	ids        IDGenerator
	tracker    *api.RunTracker
	ops        *api.Server
}

// New builds every service from cfg: the search client, the rate-limited
// storefront fetcher and the configured storage backend.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	proxyFunc, err := cfg.Proxy.ProxyFunc()
	if err != nil {
		return nil, fmt.Errorf("configure proxy: %w", err)
	}
	if cfg.Proxy.Enabled {
		logger.Info("routing storefront requests through proxy", zap.String("proxy", cfg.Proxy.Redacted()))
	}

	storefront := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		Proxy:         proxyFunc,
		Limiter: ratelimit.New(ratelimit.Config{
			PerHostRPS:   cfg.HTTP.PerHostRPS,
			PerHostBurst: cfg.HTTP.PerHostBurst,
		}),
	}, logger.Named("storefront"))

	// The search API paces itself through the page delay.
	searchFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, logger.Named("search_http"))
	search := serpapi.New(searchFetcher, serpapi.Config{
		APIKey:       cfg.Search.APIKey,
		Endpoint:     cfg.Search.Endpoint,
		GoogleDomain: cfg.Search.GoogleDomain,
	}, logger)

	backend, err := OpenBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	return Assemble(cfg, Deps{
		Search:     search,
		Storefront: storefront,
		Backend:    backend,
	}, logger), nil
}

// OpenBackend connects the configured storage backend and, when enabled,
// creates its schema.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Backend, error) {
	var (
		backend storage.Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		logger.Info("using postgres storage backend")
		backend, err = pgstore.New(ctx, pgstore.Config{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		}, logger)
	case config.BackendSQLite:
		logger.Info("using sqlite storage backend", zap.String("path", cfg.SQLite.Path))
		backend, err = sqlite.New(cfg.SQLite.Path, logger)
	case config.BackendMemory:
		logger.Warn("using in-memory storage backend; results are discarded on exit")
		backend = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	if cfg.AutoMigrate {
		if err := backend.EnsureSchema(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("migrate %s backend: %w", cfg.Backend, err)
		}
	}
	return backend, nil
}

// Assemble wires deps into an App without touching the network.
func Assemble(cfg config.Config, deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = discovery.SystemClock()
	}
	ids := deps.IDs
	if ids == nil {
		ids = uuid.New()
	}

	canon := canonical.New(deps.Storefront, cfg.Discovery.NativeDomain, logger.Named("canonical"))
	locator := location.New(deps.Storefront, location.NewRegexGeocoder(), location.Config{
		DefaultCountry: cfg.Location.DefaultCountry,
	}, logger.Named("location"))
	discoverer := discovery.NewDiscoverer(deps.Search, canon, locator, clock, deps.Pauser, discovery.Config{
		NativeDomain: cfg.Discovery.NativeDomain,
		PageSize:     cfg.Discovery.PageSize,
		PageDelay:    cfg.PageDelay(),
		Workers:      cfg.Discovery.Workers,
		Region:       cfg.Search.Region,
		Language:     cfg.Search.Language,
		Filter:       cfg.Search.Filter,
		Exclusions:   cfg.Discovery.Exclusions,
	}, logger.Named("discovery"))
	scraper := catalog.New(deps.Storefront, deps.Backend, clock, catalog.Config{
		PageLimit: cfg.Products.PageLimit,
		MaxPages:  cfg.Products.MaxPages,
	}, logger)

	tracker := &api.RunTracker{}
	return &App{
		cfg:        cfg,
		logger:     logger,
		backend:    deps.Backend,
		discoverer: discoverer,
		scraper:    scraper,
		clock:      clock,
		ids:        ids,
		tracker:    tracker,
		ops:        api.NewServer(tracker, logger),
	}
}

// Run discovers stores for niche, persists them and, when product ingestion
// is enabled, scrapes each persisted store's catalog.
func (a *App) Run(ctx context.Context, niche string, maxResults int) (discovery.RunSummary, error) {
	summary := discovery.RunSummary{
		RunID:     a.ids.NewID(),
		Niche:     niche,
		StartedAt: a.clock.Now(),
	}
	log := logging.ForRun(a.logger, summary.RunID, niche)
	log.Info("starting discovery run", zap.Int("max_results", maxResults))

	stores, err := a.discoverer.Discover(ctx, niche, maxResults)
	summary.Discovered = len(stores)
	if err != nil {
		return a.finish(summary), fmt.Errorf("discover stores: %w", err)
	}
	if len(stores) == 0 {
		log.Info("no stores found")
		return a.finish(summary), nil
	}

	report, err := a.backend.UpsertStores(ctx, stores)
	if err != nil {
		log.Error("failed to persist stores", zap.Error(err))
		return a.finish(summary), fmt.Errorf("persist stores: %w", err)
	}
	summary.Persisted = report.Saved
	summary.Skipped = report.Skipped
	if report.Saved == 0 {
		log.Warn("no valid stores to save", zap.Int("skipped", report.Skipped))
		return a.finish(summary), nil
	}
	log.Info("stores discovered and persisted",
		zap.Int("discovered", summary.Discovered),
		zap.Int("saved", report.Saved),
		zap.Int("skipped", report.Skipped),
	)

	if a.cfg.Products.Enabled {
		summary.ProductsIngested = a.ingestProducts(ctx, log, stores, niche)
	}
	return a.finish(summary), nil
}

// Products ingests the catalog of a single store.
func (a *App) Products(ctx context.Context, storeURL, niche string) (int, error) {
	key, err := discovery.StoreKey(storeURL)
	if err != nil {
		return 0, err
	}
	return a.scraper.Scrape(ctx, key, niche)
}

func (a *App) ingestProducts(ctx context.Context, log *zap.Logger, stores []discovery.DiscoveredStore, niche string) int {
	seen := make(map[string]struct{}, len(stores))
	total := 0
	for _, s := range stores {
		if _, dup := seen[s.StoreURL]; dup {
			continue
		}
		seen[s.StoreURL] = struct{}{}
		if ctx.Err() != nil {
			break
		}
		n, err := a.scraper.Scrape(ctx, s.StoreURL, niche)
		total += n
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("product ingestion failed", zap.String("store_url", s.StoreURL), zap.Error(err))
		}
	}
	log.Info("product ingestion finished", zap.Int("products", total))
	return total
}

func (a *App) finish(summary discovery.RunSummary) discovery.RunSummary {
	summary.FinishedAt = a.clock.Now()
	a.tracker.Record(summary)
	return summary
}

// Ops returns the operator HTTP server bound to this app's run history.
func (a *App) Ops() *api.Server {
	return a.ops
}

// ServeOps runs the ops server on addr until ctx is done. An empty addr
// disables it.
func (a *App) ServeOps(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	a.ops.SetReady(true)
	return a.ops.ListenAndServe(ctx, addr)
}

// Close releases the storage backend and flushes the logger.
func (a *App) Close() error {
	var errs []error
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
