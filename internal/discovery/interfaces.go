package discovery

import (
	"context"
	"time"
)

// Getter performs a single GET and returns the outcome regardless of status.
type Getter interface {
	Get(ctx context.Context, rawURL string) (Response, error)
}

// PageFetcher fetches and parses an HTML page, failing on any non-200 status.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*Page, error)
}

// SearchProvider returns one page of candidate storefront links.
type SearchProvider interface {
	Search(ctx context.Context, query SearchQuery) (SearchPage, error)
}

// Canonicalizer resolves a candidate to its canonical storefront URL.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, rawURL string) (Resolution, error)
}

// LocationInferer infers a store's location. Implementations must be total.
type LocationInferer interface {
	Infer(ctx context.Context, storeURL string) LocationResult
}

// StoreRepository persists discovered stores keyed by store URL.
type StoreRepository interface {
	UpsertStores(ctx context.Context, stores []DiscoveredStore) (UpsertReport, error)
}

// ProductRepository persists catalog entries with plain inserts.
type ProductRepository interface {
	InsertProduct(ctx context.Context, product Product) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Pauser blocks between search pages.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}
