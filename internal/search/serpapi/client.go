// Package serpapi implements discovery.SearchProvider on top of the SerpAPI
// Google search endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// DefaultEndpoint is the SerpAPI JSON search endpoint.
const DefaultEndpoint = "https://serpapi.com/search.json"

// noResultsMessage is the provider's error text for an exhausted query.
const noResultsMessage = "hasn't returned any results"

// Config holds the SerpAPI client settings.
type Config struct {
	APIKey       string
	Endpoint     string
	GoogleDomain string
}

// Client queries SerpAPI through a discovery.Getter.
type Client struct {
	getter discovery.Getter
	cfg    Config
	logger *zap.Logger
}

type response struct {
	OrganicResults *[]organicResult `json:"organic_results"`
	Error          string           `json:"error"`
}

type organicResult struct {
	Link  string `json:"link"`
	Title string `json:"title"`
}

// New builds a Client.
func New(getter discovery.Getter, cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.GoogleDomain == "" {
		cfg.GoogleDomain = "google.com"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{getter: getter, cfg: cfg, logger: logger.Named("serpapi")}
}

// Search fetches one page of organic results. A response without an
// organic_results field or an error yields Present=false. An explicit empty
// list, any provider error body, or a 429 yields Present=true with no results,
// which ends pagination.
func (c *Client) Search(ctx context.Context, q discovery.SearchQuery) (discovery.SearchPage, error) {
	endpoint, err := c.buildURL(q)
	if err != nil {
		return discovery.SearchPage{}, err
	}

	resp, err := c.getter.Get(ctx, endpoint)
	if err != nil {
		return discovery.SearchPage{}, c.redact(fmt.Errorf("serpapi search offset %d: %w", q.Offset, err))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("provider rate limited the search; treating as exhausted", zap.Int("offset", q.Offset))
		return discovery.SearchPage{Present: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return discovery.SearchPage{}, fmt.Errorf("serpapi search offset %d: %w: status %d",
			q.Offset, discovery.ErrTransport, resp.StatusCode)
	}

	var body response
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return discovery.SearchPage{}, fmt.Errorf("serpapi search offset %d: %w: %w", q.Offset, discovery.ErrParse, err)
	}

	if body.OrganicResults == nil {
		if body.Error == "" {
			return discovery.SearchPage{Present: false}, nil
		}
		if strings.Contains(body.Error, noResultsMessage) {
			c.logger.Debug("provider has no more results", zap.Int("offset", q.Offset))
		} else {
			c.logger.Warn("provider returned an error; treating as exhausted",
				zap.Int("offset", q.Offset), zap.String("error", body.Error))
		}
		return discovery.SearchPage{Present: true}, nil
	}

	page := discovery.SearchPage{
		Present: true,
		Results: make([]discovery.SearchResult, 0, len(*body.OrganicResults)),
	}
	for _, r := range *body.OrganicResults {
		page.Results = append(page.Results, discovery.SearchResult{Link: r.Link, Title: r.Title})
	}
	return page, nil
}

func (c *Client) buildURL(q discovery.SearchQuery) (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("serpapi endpoint %q: %w", c.cfg.Endpoint, err)
	}
	params := u.Query()
	params.Set("engine", "google")
	params.Set("q", q.Text)
	params.Set("num", strconv.Itoa(q.PageSize))
	params.Set("start", strconv.Itoa(q.Offset))
	params.Set("google_domain", c.cfg.GoogleDomain)
	if q.Region != "" {
		params.Set("gl", q.Region)
	}
	if q.Language != "" {
		params.Set("hl", q.Language)
	}
	params.Set("filter", strconv.Itoa(q.Filter))
	params.Set("api_key", c.cfg.APIKey)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// redact hides the API key in error text that embeds the request URL.
func (c *Client) redact(err error) error {
	if c.cfg.APIKey == "" {
		return err
	}
	return &redactedError{err: err, secret: c.cfg.APIKey}
}

type redactedError struct {
	err    error
	secret string
}

func (e *redactedError) Error() string {
	return strings.ReplaceAll(e.err.Error(), e.secret, "REDACTED")
}

func (e *redactedError) Unwrap() error { return e.err }
