package serpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	collyfetcher "github.com/JakeFAU/storefront-finder/internal/fetcher/colly"
)

type stubGetter struct {
	resp discovery.Response
	err  error
	urls []string
}

func (s *stubGetter) Get(_ context.Context, rawURL string) (discovery.Response, error) {
	s.urls = append(s.urls, rawURL)
	return s.resp, s.err
}

func okBody(body string) discovery.Response {
	return discovery.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestSearch_SendsParameters(t *testing.T) {
	getter := &stubGetter{resp: okBody(`{"organic_results":[]}`)}
	c := New(getter, Config{APIKey: "secret"}, nil)

	_, err := c.Search(context.Background(), discovery.SearchQuery{
		Text:     "site:.myshopify.com candles",
		PageSize: 20,
		Offset:   40,
		Region:   "us",
		Language: "en",
	})
	require.NoError(t, err)
	require.Len(t, getter.urls, 1)

	u, err := url.Parse(getter.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "serpapi.com", u.Host)
	assert.Equal(t, "/search.json", u.Path)
	q := u.Query()
	assert.Equal(t, "site:.myshopify.com candles", q.Get("q"))
	assert.Equal(t, "20", q.Get("num"))
	assert.Equal(t, "40", q.Get("start"))
	assert.Equal(t, "us", q.Get("gl"))
	assert.Equal(t, "en", q.Get("hl"))
	assert.Equal(t, "0", q.Get("filter"))
	assert.Equal(t, "google.com", q.Get("google_domain"))
	assert.Equal(t, "secret", q.Get("api_key"))
}

func TestSearch_ResultShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		present bool
		links   []string
	}{
		{
			name:    "results",
			body:    `{"organic_results":[{"link":"https://a.myshopify.com","title":"A"},{"title":"no link"}]}`,
			present: true,
			links:   []string{"https://a.myshopify.com", ""},
		},
		{name: "empty container", body: `{"organic_results":[]}`, present: true},
		{name: "absent container", body: `{"search_metadata":{"status":"Success"}}`, present: false},
		{name: "null body", body: `null`, present: false},
		{name: "exhausted query", body: `{"error":"Google hasn't returned any results for this query."}`, present: true},
		{name: "quota exhausted", body: `{"error":"Your account has run out of searches."}`, present: true},
		{name: "other provider error", body: `{"error":"Invalid API key."}`, present: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&stubGetter{resp: okBody(tt.body)}, Config{}, nil)
			page, err := c.Search(context.Background(), discovery.SearchQuery{PageSize: 20})
			require.NoError(t, err)
			assert.Equal(t, tt.present, page.Present)

			links := make([]string, 0, len(page.Results))
			for _, r := range page.Results {
				links = append(links, r.Link)
			}
			if tt.links == nil {
				assert.Empty(t, links)
			} else {
				assert.Equal(t, tt.links, links)
			}
		})
	}
}

func TestSearch_Errors(t *testing.T) {
	c := New(&stubGetter{resp: okBody(`{"organic_results":`)}, Config{}, nil)
	_, err := c.Search(context.Background(), discovery.SearchQuery{})
	assert.ErrorIs(t, err, discovery.ErrParse)

	c = New(&stubGetter{resp: discovery.Response{StatusCode: http.StatusUnauthorized}}, Config{}, nil)
	_, err = c.Search(context.Background(), discovery.SearchQuery{})
	assert.ErrorIs(t, err, discovery.ErrTransport)
}

func TestSearch_RateLimitStatusIsExhaustion(t *testing.T) {
	c := New(&stubGetter{resp: discovery.Response{StatusCode: http.StatusTooManyRequests}}, Config{}, nil)
	page, err := c.Search(context.Background(), discovery.SearchQuery{PageSize: 20})
	require.NoError(t, err)
	assert.True(t, page.Present)
	assert.Empty(t, page.Results)
}

type noopCanonicalizer struct{}

func (noopCanonicalizer) Canonicalize(_ context.Context, raw string) (discovery.Resolution, error) {
	return discovery.Resolution{CanonicalURL: raw}, nil
}

type defaultLocator struct{}

func (defaultLocator) Infer(context.Context, string) discovery.LocationResult {
	return discovery.DefaultLocation("US")
}

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

func TestDiscover_StopsWhenProviderRateLimits(t *testing.T) {
	for name, resp := range map[string]discovery.Response{
		"quota body": okBody(`{"error":"Your account has run out of searches."}`),
		"429 status": {StatusCode: http.StatusTooManyRequests},
	} {
		t.Run(name, func(t *testing.T) {
			getter := &stubGetter{resp: resp}
			d := discovery.NewDiscoverer(New(getter, Config{APIKey: "k"}, nil), noopCanonicalizer{}, defaultLocator{},
				nil, noPause{}, discovery.Config{PageSize: 20, Exclusions: []string{}}, nil)

			stores, err := d.Discover(context.Background(), "mugs", 100)
			require.NoError(t, err)
			assert.Empty(t, stores)
			assert.Len(t, getter.urls, 1)
		})
	}
}

func TestSearch_RedactsAPIKey(t *testing.T) {
	getErr := errors.New("get https://serpapi.com/search.json?api_key=topsecret: dial tcp: refused")
	c := New(&stubGetter{err: errors.Join(discovery.ErrTransport, getErr)}, Config{APIKey: "topsecret"}, nil)

	_, err := c.Search(context.Background(), discovery.SearchQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, discovery.ErrTransport)
	assert.NotContains(t, err.Error(), "topsecret")
	assert.Contains(t, err.Error(), "REDACTED")
}

func TestSearch_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results":[{"link":"https://b.myshopify.com/"}]}`))
	}))
	t.Cleanup(srv.Close)

	fetcher := collyfetcher.New(collyfetcher.Config{}, nil)
	c := New(fetcher, Config{APIKey: "k", Endpoint: srv.URL + "/search.json"}, nil)

	page, err := c.Search(context.Background(), discovery.SearchQuery{Text: "tea", PageSize: 10})
	require.NoError(t, err)
	require.True(t, page.Present)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "https://b.myshopify.com/", page.Results[0].Link)
}
