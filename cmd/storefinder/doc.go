// Package main hosts the storefinder CLI.
//
// Architecture overview:
//   - Search: a SerpAPI client pages through results for a niche restricted to
//     the platform's native domain. Pages are spaced by a configurable delay.
//   - Canonicalization: each hit is fetched through the Colly-based fetcher;
//     redirects away from the native domain collapse the store to its custom
//     domain.
//   - Location: a cascade of JSON-LD, contact page, footer and about page
//     strategies infers the store's country and city, falling back to the
//     configured default country.
//   - Persistence: stores are upserted keyed by URL into Postgres (pgx),
//     SQLite or memory. A failing record rolls back to its savepoint and the
//     rest of the batch commits.
//   - Products: with products.enabled, each persisted store's products feed
//     is ingested after discovery.
//
// Operational notes:
//   - Storefront requests are throttled per host and can be routed through an
//     authenticated proxy. Search requests are not proxied.
//   - Setting metrics.addr starts the ops server (/healthz, /readyz, /metrics,
//     /v1/runs/last) for the lifetime of the command.
//   - SIGINT and SIGTERM cancel the run; in-flight fetches stop at the next
//     context check.
//
// Quick checklist:
//   - Export SERPAPI_KEY (or STOREFINDER_SEARCH_API_KEY) and, for Postgres,
//     DATABASE_URL.
//   - Run: go run ./cmd/storefinder discover --niche "ceramic mugs".
package main
