package discovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/storefront-finder/internal/metrics"
)

// Config controls pagination, pacing and fan-out of a discovery run.
type Config struct {
	NativeDomain string
	PageSize     int
	PageDelay    time.Duration
	Workers      int
	Region       string
	Language     string
	Filter       int
	Exclusions   []string
}

// Discoverer drives the search provider and turns each hit into a
// DiscoveredStore via the canonicalizer and location inferer.
type Discoverer struct {
	search  SearchProvider
	canon   Canonicalizer
	locator LocationInferer
	clock   Clock
	pauser  Pauser
	cfg     Config
	logger  *zap.Logger
}

// NewDiscoverer constructs a Discoverer. Nil clock, pauser and logger fall
// back to the system clock, a timer pauser and a no-op logger.
func NewDiscoverer(
	search SearchProvider,
	canon Canonicalizer,
	locator LocationInferer,
	clock Clock,
	pauser Pauser,
	cfg Config,
	logger *zap.Logger,
) *Discoverer {
	if clock == nil {
		clock = SystemClock()
	}
	if pauser == nil {
		pauser = NewTimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Exclusions == nil {
		cfg.Exclusions = DefaultExclusions
	}
	return &Discoverer{
		search:  search,
		canon:   canon,
		locator: locator,
		clock:   clock,
		pauser:  pauser,
		cfg:     cfg,
		logger:  logger,
	}
}

// Discover pages through search results for niche until maxResults results
// have been requested or the provider signals exhaustion. The returned slice
// may hold the same store URL more than once; persistence deduplicates.
// An error is returned only when ctx is done.
func (d *Discoverer) Discover(ctx context.Context, niche string, maxResults int) ([]DiscoveredStore, error) {
	text := BuildQuery(d.cfg.NativeDomain, niche, d.cfg.Exclusions)
	var stores []DiscoveredStore

	for offset := 0; offset < maxResults; offset += d.cfg.PageSize {
		if offset > 0 {
			d.pauser.Pause(ctx, d.cfg.PageDelay)
		}
		if err := ctx.Err(); err != nil {
			return stores, err
		}

		d.logger.Info("fetching search results",
			zap.String("niche", niche),
			zap.Int("from", offset+1),
			zap.Int("to", offset+d.cfg.PageSize),
		)
		page, err := d.search.Search(ctx, SearchQuery{
			Text:     text,
			PageSize: d.cfg.PageSize,
			Offset:   offset,
			Region:   d.cfg.Region,
			Language: d.cfg.Language,
			Filter:   d.cfg.Filter,
		})
		if err != nil {
			metrics.ObserveSearchPage("error")
			d.logger.Warn("search request failed; skipping page", zap.Int("offset", offset), zap.Error(err))
			continue
		}
		if !page.Present {
			metrics.ObserveSearchPage("absent")
			d.logger.Warn("search response had no results container; skipping page", zap.Int("offset", offset))
			continue
		}
		if len(page.Results) == 0 {
			metrics.ObserveSearchPage("empty")
			d.logger.Warn("search returned no results; possible rate limit or exhaustion, stopping",
				zap.Int("offset", offset))
			break
		}
		metrics.ObserveSearchPage("ok")

		found := d.processPage(ctx, niche, page.Results)
		stores = append(stores, found...)
		d.logger.Info("stores found so far", zap.Int("count", len(stores)))
	}
	return stores, nil
}

func (d *Discoverer) processPage(ctx context.Context, niche string, results []SearchResult) []DiscoveredStore {
	slots := make([]*DiscoveredStore, len(results))
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i, res := range results {
		g.Go(func() error {
			if store, ok := d.processResult(ctx, niche, res); ok {
				slots[i] = &store
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	out := make([]DiscoveredStore, 0, len(results))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (d *Discoverer) processResult(ctx context.Context, niche string, res SearchResult) (DiscoveredStore, bool) {
	link := strings.TrimSpace(res.Link)
	if link == "" || !IsHTTPURL(link) {
		metrics.ObserveSkip("malformed_link")
		d.logger.Warn("skipping malformed search result", zap.String("link", res.Link), zap.String("title", res.Title))
		return DiscoveredStore{}, false
	}

	resolution, err := d.canon.Canonicalize(ctx, link)
	if err != nil {
		metrics.ObserveSkip("canonicalize")
		d.logger.Warn("failed to resolve store url; skipping", zap.String("link", link), zap.Error(err))
		return DiscoveredStore{}, false
	}

	storeURL := resolution.Preferred()
	key, err := StoreKey(storeURL)
	if err != nil {
		metrics.ObserveSkip("invalid_url")
		d.logger.Warn("resolved store url is not absolute http(s); skipping",
			zap.String("store_url", storeURL), zap.Error(err))
		return DiscoveredStore{}, false
	}

	loc := d.locator.Infer(ctx, storeURL)
	now := d.clock.Now()
	store := DiscoveredStore{
		StoreURL:    key,
		StoreName:   StoreName(key),
		Niche:       niche,
		Country:     loc.Country,
		City:        loc.City,
		Source:      loc.Source,
		LastScraped: now,
		CreatedAt:   now,
	}
	metrics.ObserveDiscovered()
	d.logger.Info("found store",
		zap.String("store_url", store.StoreURL),
		zap.String("store_name", store.StoreName),
		zap.Bool("custom_domain", resolution.CustomDomain),
		zap.String("country", store.Country),
		zap.String("city", store.City),
		zap.String("source", string(store.Source)),
	)
	return store, true
}
