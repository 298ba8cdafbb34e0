// Package discovery defines the storefront discovery types and the
// orchestrator that turns search results into located, persistable stores.
package discovery

import (
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// ConfidenceSource records which extraction strategy produced a location.
type ConfidenceSource string

// Location sources. SourceDefault means no strategy found a signal.
const (
	SourceSchema      ConfidenceSource = "SCHEMA"
	SourceTextPattern ConfidenceSource = "TEXT_PATTERN"
	SourceDefault     ConfidenceSource = "DEFAULT"
)

// UnknownCity is the city reported when no signal is found.
const UnknownCity = "Unknown"

// LocationResult is the best-effort location of a store. It is never absent;
// a default-valued result carries SourceDefault.
//
// Country holds a two-letter US state code when the text-pattern strategy
// produced it. Free text carries no country-level signal, so the state code
// stands in for the country field.
type LocationResult struct {
	Country string           `json:"country"`
	City    string           `json:"city"`
	Source  ConfidenceSource `json:"confidence_source"`
}

// DefaultLocation builds the fallback result for the given default country.
func DefaultLocation(defaultCountry string) LocationResult {
	return LocationResult{Country: defaultCountry, City: UnknownCity, Source: SourceDefault}
}

// StoreCandidate is a raw search-result link awaiting canonicalization.
type StoreCandidate struct {
	URL string
}

// Resolution is the canonicalizer's verdict for a candidate URL.
type Resolution struct {
	// CanonicalURL is https://{host} for custom domains, the original URL otherwise.
	CanonicalURL string
	// FinalURL is the redirected URL; empty unless CustomDomain is set.
	FinalURL     string
	CustomDomain bool
}

// Preferred returns the URL callers should use for the store: the custom
// domain form when present, the native URL otherwise.
func (r Resolution) Preferred() string {
	return r.CanonicalURL
}

// DiscoveredStore is one located storefront ready for persistence.
type DiscoveredStore struct {
	StoreURL    string           `json:"store_url"`
	StoreName   string           `json:"store_name"`
	Niche       string           `json:"niche"`
	Country     string           `json:"country"`
	City        string           `json:"city"`
	Source      ConfidenceSource `json:"confidence_source"`
	LastScraped time.Time        `json:"last_scraped"`
	CreatedAt   time.Time        `json:"created_at"`
}

// SearchQuery is one page request sent to a search provider.
type SearchQuery struct {
	Text     string
	PageSize int
	Offset   int
	Region   string
	Language string
	// Filter mirrors the provider's duplicate filter; 0 includes omitted results.
	Filter int
}

// SearchResult is a single provider hit.
type SearchResult struct {
	Link  string
	Title string
}

// SearchPage is one page of provider results. Present is false when the
// provider returned no results container at all.
type SearchPage struct {
	Results []SearchResult
	Present bool
}

// Response is a raw HTTP outcome of any status.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Page is a successfully fetched and parsed HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Doc        *goquery.Document
}

// Product is a normalized catalog entry ingested for a store.
type Product struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Niche       string          `json:"niche"`
	Images      []string        `json:"images"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"stock_status"`
	Rating      *float64        `json:"rating,omitempty"`
	Reviews     *int            `json:"reviews,omitempty"`
	Seller      string          `json:"seller"`
	ScrapedAt   time.Time       `json:"scraped_at"`
}

// UpsertReport summarizes one persistence batch.
type UpsertReport struct {
	Saved   int
	Skipped int
}

// RunSummary reports the outcome of one discovery run.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Niche            string    `json:"niche"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Discovered       int       `json:"discovered"`
	Persisted        int       `json:"persisted"`
	Skipped          int       `json:"skipped"`
	ProductsIngested int       `json:"products_ingested"`
}
