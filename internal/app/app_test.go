package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/app"
	"github.com/JakeFAU/storefront-finder/internal/config"
	"github.com/JakeFAU/storefront-finder/internal/discovery"
	collyfetcher "github.com/JakeFAU/storefront-finder/internal/fetcher/colly"
	"github.com/JakeFAU/storefront-finder/internal/storage"
	"github.com/JakeFAU/storefront-finder/internal/storage/memory"
)

type pagedSearch struct {
	pages []discovery.SearchPage
}

func (p *pagedSearch) Search(_ context.Context, q discovery.SearchQuery) (discovery.SearchPage, error) {
	idx := q.Offset / q.PageSize
	if idx >= len(p.pages) {
		return discovery.SearchPage{Present: true}, nil
	}
	return p.pages[idx], nil
}

type fixedID string

func (f fixedID) NewID() string { return string(f) }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type feedFetcher struct {
	feeds map[string]string
}

func (f *feedFetcher) Get(_ context.Context, rawURL string) (discovery.Response, error) {
	body, ok := f.feeds[rawURL]
	if !ok {
		return discovery.Response{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusNotFound}, nil
	}
	return discovery.Response{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *feedFetcher) FetchPage(context.Context, string) (*discovery.Page, error) {
	return nil, discovery.ErrTransport
}

func testConfig(nativeDomain string) config.Config {
	return config.Config{
		Discovery: config.DiscoveryConfig{
			MaxResults:   20,
			PageSize:     20,
			Workers:      2,
			NativeDomain: nativeDomain,
			Exclusions:   []string{},
		},
		Location: config.LocationConfig{DefaultCountry: "US"},
		Storage:  config.StorageConfig{Backend: config.BackendMemory},
		Products: config.ProductsConfig{PageLimit: 250, MaxPages: 1},
	}
}

func links(urls ...string) discovery.SearchPage {
	page := discovery.SearchPage{Present: true}
	for _, u := range urls {
		page.Results = append(page.Results, discovery.SearchResult{Link: u, Title: u})
	}
	return page
}

func closedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr + "/"
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	custom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>custom storefront</body></html>`))
	}))
	t.Cleanup(custom.Close)
	customURL := strings.Replace(custom.URL, "127.0.0.1", "localhost", 1)

	native := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/go-custom" {
			http.Redirect(w, r, customURL+"/", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(`<html><head><script type="application/ld+json">
{"@type":"Organization","address":{"addressCountry":"CA","addressLocality":"Toronto"}}
</script></head><body>native storefront</body></html>`))
	}))
	t.Cleanup(native.Close)
	nativeHost := strings.TrimPrefix(native.URL, "http://")

	backend := memory.NewStore()
	search := &pagedSearch{pages: []discovery.SearchPage{links(
		native.URL+"/shop-a",
		closedURL(t),
		native.URL+"/go-custom",
	)}}
	storefront := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second}, nil)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a := app.Assemble(testConfig(nativeHost), app.Deps{
		Search:     search,
		Storefront: storefront,
		Backend:    backend,
		Clock:      fixedClock{now: now},
	}, nil)

	summary, err := a.Run(context.Background(), "mugs", 20)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 2, summary.Persisted)
	assert.Equal(t, 0, summary.Skipped)
	assert.NotEmpty(t, summary.RunID)

	stores := backend.Stores()
	require.Len(t, stores, 2)
	byURL := map[string]discovery.DiscoveredStore{}
	for _, s := range stores {
		byURL[s.StoreURL] = s
	}

	nativeStore, ok := byURL["https://"+nativeHost]
	require.True(t, ok, "native store missing: %v", byURL)
	assert.Equal(t, "CA", nativeStore.Country)
	assert.Equal(t, "Toronto", nativeStore.City)
	assert.Equal(t, discovery.SourceSchema, nativeStore.Source)
	assert.Equal(t, "mugs", nativeStore.Niche)
	assert.Equal(t, now, nativeStore.CreatedAt)

	customStore, ok := byURL[strings.Replace(customURL, "http://", "https://", 1)]
	require.True(t, ok, "custom store missing: %v", byURL)
	assert.Equal(t, discovery.DefaultLocation("US"), discovery.LocationResult{
		Country: customStore.Country, City: customStore.City, Source: customStore.Source,
	})
}

func TestRun_PersistenceFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>shop</body></html>`))
	}))
	t.Cleanup(srv.Close)

	backend := &storage.MockBackend{}
	backend.On("UpsertStores", mock.Anything, mock.MatchedBy(func(s []discovery.DiscoveredStore) bool {
		return len(s) == 1
	})).Return(discovery.UpsertReport{}, fmt.Errorf("begin: %w", discovery.ErrPersistence))

	a := app.Assemble(testConfig(strings.TrimPrefix(srv.URL, "http://")), app.Deps{
		Search:     &pagedSearch{pages: []discovery.SearchPage{links(srv.URL + "/")}},
		Storefront: collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second}, nil),
		Backend:    backend,
	}, nil)

	summary, err := a.Run(context.Background(), "candles", 20)
	require.Error(t, err)
	assert.ErrorIs(t, err, discovery.ErrPersistence)
	assert.Equal(t, 1, summary.Discovered)
	assert.Equal(t, 0, summary.Persisted)
	backend.AssertExpectations(t)
}

func TestRun_NoStoresSkipsPersistence(t *testing.T) {
	t.Parallel()

	backend := &storage.MockBackend{}
	a := app.Assemble(testConfig("myshopify.com"), app.Deps{
		Search:     &pagedSearch{},
		Storefront: &feedFetcher{},
		Backend:    backend,
	}, nil)

	summary, err := a.Run(context.Background(), "kites", 20)
	require.NoError(t, err)
	assert.Zero(t, summary.Discovered)
	backend.AssertNotCalled(t, "UpsertStores", mock.Anything, mock.Anything)
}

func TestRun_RecordsLastRun(t *testing.T) {
	t.Parallel()

	a := app.Assemble(testConfig("myshopify.com"), app.Deps{
		Search:     &pagedSearch{},
		Storefront: &feedFetcher{},
		Backend:    memory.NewStore(),
		IDs:        fixedID("run-42"),
	}, nil)

	summary, err := a.Run(context.Background(), "kites", 20)
	require.NoError(t, err)
	require.Equal(t, "run-42", summary.RunID)

	rec := httptest.NewRecorder()
	a.Ops().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/last", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got discovery.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, "kites", got.Niche)
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	a := app.Assemble(testConfig("myshopify.com"), app.Deps{
		Search:     &pagedSearch{},
		Storefront: &feedFetcher{},
		Backend:    memory.NewStore(),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx, "kites", 20)
	require.ErrorIs(t, err, context.Canceled)
}

const feedJSON = `{"products":[
 {"title":"Blue Mug","body_html":"<p>Stoneware</p>","product_type":"Mugs",
  "images":[{"src":"https://cdn.example.com/blue.jpg"}],
  "variants":[{"price":"24.50","available":true}]},
 {"title":"Red Mug","variants":[{"price":"19.00","available":false}]}
]}`

func TestProducts_IngestsFeed(t *testing.T) {
	t.Parallel()

	backend := memory.NewStore()
	fetcher := &feedFetcher{feeds: map[string]string{
		"https://mugs.example.com/products.json?limit=250&page=1": feedJSON,
	}}
	a := app.Assemble(testConfig("myshopify.com"), app.Deps{
		Search:     &pagedSearch{},
		Storefront: fetcher,
		Backend:    backend,
	}, nil)

	n, err := a.Products(context.Background(), "http://mugs.example.com/collections/all", "mugs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	products := backend.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "https://mugs.example.com", products[0].Seller)
	assert.Equal(t, "mugs", products[0].Niche)
}

func TestProducts_RejectsBadURL(t *testing.T) {
	t.Parallel()

	a := app.Assemble(testConfig("myshopify.com"), app.Deps{
		Search:     &pagedSearch{},
		Storefront: &feedFetcher{},
		Backend:    memory.NewStore(),
	}, nil)
	_, err := a.Products(context.Background(), "ftp://nope", "mugs")
	require.ErrorIs(t, err, discovery.ErrDataShape)
}

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	mem, err := app.OpenBackend(ctx, config.StorageConfig{Backend: config.BackendMemory, AutoMigrate: true}, nopLogger())
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	lite, err := app.OpenBackend(ctx, config.StorageConfig{
		Backend:     config.BackendSQLite,
		AutoMigrate: true,
		SQLite:      config.SQLiteConfig{Path: ":memory:"},
	}, nopLogger())
	require.NoError(t, err)
	report, err := lite.UpsertStores(ctx, []discovery.DiscoveredStore{{
		StoreURL: "https://a.example.com", StoreName: "a", Niche: "mugs",
		Country: "US", City: "Unknown", Source: discovery.SourceDefault,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Saved)
	require.NoError(t, lite.Close())

	_, err = app.OpenBackend(ctx, config.StorageConfig{Backend: "redis"}, nopLogger())
	require.Error(t, err)

	_, err = app.OpenBackend(ctx, config.StorageConfig{Backend: config.BackendPostgres}, nopLogger())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func nopLogger() *zap.Logger { return zap.NewNop() }
