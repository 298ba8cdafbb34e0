// Package location infers a storefront's country and city from its public
// pages using an ordered cascade of extraction strategies.
package location

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
)

// DefaultCountry is the fallback country when no strategy finds a signal.
const DefaultCountry = "US"

// Config controls the extractor.
type Config struct {
	DefaultCountry string
}

// Probe carries the state shared by strategies for a single store.
type Probe struct {
	StoreURL string
	Root     *discovery.Page
	Fetcher  discovery.PageFetcher
}

// Strategy extracts a location from a probe. ok is false when the strategy
// found no signal.
type Strategy interface {
	Name() string
	Locate(ctx context.Context, probe *Probe) (discovery.LocationResult, bool)
}

// Extractor runs strategies in order and returns the first result whose
// country differs from the default.
type Extractor struct {
	fetcher        discovery.PageFetcher
	strategies     []Strategy
	defaultCountry string
	logger         *zap.Logger
}

// New builds an Extractor with the standard cascade: schema markup, contact
// page, footer, about page.
func New(fetcher discovery.PageFetcher, geocoder TextGeocoder, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = DefaultCountry
	}
	if geocoder == nil {
		geocoder = NewRegexGeocoder()
	}
	logger = logger.Named("location")
	strategies := []Strategy{
		NewSchemaStrategy(cfg.DefaultCountry, logger),
		NewLinkedPageStrategy("contact", geocoder, logger),
		NewFooterStrategy(geocoder),
		NewLinkedPageStrategy("about", geocoder, logger),
	}
	return NewWithStrategies(fetcher, strategies, cfg, logger)
}

// NewWithStrategies builds an Extractor with a custom cascade.
func NewWithStrategies(fetcher discovery.PageFetcher, strategies []Strategy, cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = DefaultCountry
	}
	return &Extractor{
		fetcher:        fetcher,
		strategies:     strategies,
		defaultCountry: cfg.DefaultCountry,
		logger:         logger,
	}
}

// Infer returns the best-effort location for storeURL. It never fails: an
// unfetchable store or an exhausted cascade yields the default location.
func (e *Extractor) Infer(ctx context.Context, storeURL string) discovery.LocationResult {
	result := e.infer(ctx, storeURL)
	metrics.ObserveLocation(string(result.Source))
	return result
}

func (e *Extractor) infer(ctx context.Context, storeURL string) discovery.LocationResult {
	fallback := discovery.DefaultLocation(e.defaultCountry)

	root, err := e.fetcher.FetchPage(ctx, storeURL)
	if err != nil {
		e.logger.Debug("store root unavailable; using default location",
			zap.String("store_url", storeURL), zap.Error(err))
		return fallback
	}

	probe := &Probe{StoreURL: storeURL, Root: root, Fetcher: e.fetcher}
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return fallback
		}
		res, ok := s.Locate(ctx, probe)
		if !ok || e.isDefault(res.Country) {
			continue
		}
		e.logger.Debug("location found",
			zap.String("store_url", storeURL),
			zap.String("strategy", s.Name()),
			zap.String("country", res.Country),
			zap.String("city", res.City),
		)
		return res
	}
	return fallback
}

// isDefault reports whether country carries no signal. The default country
// is a sentinel compared exactly: a store genuinely in the default country is
// indistinguishable from one with no signal and falls through the cascade,
// while a differently cased code is kept as found.
func (e *Extractor) isDefault(country string) bool {
	country = strings.TrimSpace(country)
	return country == "" || country == e.defaultCountry
}
