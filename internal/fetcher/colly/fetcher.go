// Package collyfetcher implements the storefront page fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
)

// DefaultUserAgent is a desktop browser user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultTimeout bounds a single request, redirects included.
const DefaultTimeout = 10 * time.Second

// Limiter paces requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// MaxBodyBytes caps response bodies; 0 keeps colly's default.
	MaxBodyBytes int
	// Proxy selects the proxy for each request; nil connects directly.
	Proxy   func(*http.Request) (*url.URL, error)
	Limiter Limiter
}

// Fetcher implements discovery.Getter and discovery.PageFetcher.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []colly.CollectorOption{
		colly.Async(false),
		// Clones share the visited set; every fetch is a fresh visit.
		colly.AllowURLRevisit(),
		// Hand every status to OnResponse; callers decide what is acceptable.
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(cfg.UserAgent),
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	c.IgnoreRobotsTxt = !cfg.RespectRobots

	// Clones share the backend client, so transport and timeout are set once here.
	var transport http.RoundTripper = newHTTPTransport(cfg.Proxy)
	if cfg.RespectRobots {
		transport = &robotsFallbackTransport{base: transport, logger: logger}
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger.Named("fetcher"),
	}
}

// Get performs a single GET, following redirects, and returns the response
// whatever its status. Only transport failures return an error.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (discovery.Response, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return discovery.Response{}, fmt.Errorf("get %s: %w: %w", rawURL, discovery.ErrTransport, err)
		}
	}

	var (
		result   discovery.Response
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, rawURL, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		metrics.ObserveFetch(0)
		return discovery.Response{}, fmt.Errorf("get %s: %w: %w", rawURL, discovery.ErrTransport, err)
	}
	metrics.ObserveFetch(result.StatusCode)
	return result, nil
}

// FetchPage fetches rawURL and parses it as HTML. Any status other than 200
// is a transport failure.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*discovery.Page, error) {
	resp, err := f.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("unexpected status code",
			zap.String("url", rawURL),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: %s returned status %d", discovery.ErrTransport, rawURL, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", discovery.ErrParse, rawURL, err)
	}
	return &discovery.Page{
		URL:        resp.URL,
		FinalURL:   resp.FinalURL,
		StatusCode: resp.StatusCode,
		Doc:        doc,
	}, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	rawURL string,
	result *discovery.Response,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	hooks.OnResponse(func(r *colly.Response) {
		finalURL := rawURL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		var header http.Header
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		*result = discovery.Response{
			URL:        rawURL,
			FinalURL:   finalURL,
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport(proxy func(*http.Request) (*url.URL, error)) *http.Transport {
	return &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
