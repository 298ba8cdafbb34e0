// Package catalog ingests product listings from a storefront's public
// products.json feed.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
	"github.com/JakeFAU/storefront-finder/internal/metrics"
)

// Config controls feed paging.
type Config struct {
	// PageLimit is the products requested per page; the platform caps it at 250.
	PageLimit int
	MaxPages  int
}

// Scraper pages through a store's products feed and inserts every product.
type Scraper struct {
	getter discovery.Getter
	repo   discovery.ProductRepository
	clock  discovery.Clock
	cfg    Config
	logger *zap.Logger
}

type feed struct {
	Products []feedProduct `json:"products"`
}

type feedProduct struct {
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html"`
	ProductType string        `json:"product_type"`
	Images      []feedImage   `json:"images"`
	Variants    []feedVariant `json:"variants"`
}

type feedImage struct {
	Src string `json:"src"`
}

type feedVariant struct {
	Price     json.RawMessage `json:"price"`
	Available bool            `json:"available"`
}

// New builds a Scraper.
func New(getter discovery.Getter, repo discovery.ProductRepository, clock discovery.Clock, cfg Config, logger *zap.Logger) *Scraper {
	if cfg.PageLimit <= 0 || cfg.PageLimit > 250 {
		cfg.PageLimit = 250
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if clock == nil {
		clock = discovery.SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{getter: getter, repo: repo, clock: clock, cfg: cfg, logger: logger.Named("catalog")}
}

// Scrape ingests up to MaxPages feed pages for storeURL, stopping at the
// first empty page. Products that cannot be mapped or inserted are logged
// and skipped. It returns the number of products inserted; an error means a
// feed page could not be fetched or decoded.
func (s *Scraper) Scrape(ctx context.Context, storeURL, niche string) (int, error) {
	inserted := 0
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		products, err := s.fetchPage(ctx, storeURL, page)
		if err != nil {
			s.logger.Warn("failed to fetch product feed", zap.String("store_url", storeURL), zap.Int("page", page), zap.Error(err))
			return inserted, err
		}
		if len(products) == 0 {
			break
		}
		for _, fp := range products {
			p, err := s.toProduct(fp, storeURL, niche)
			if err != nil {
				metrics.ObserveProduct("skipped")
				s.logger.Debug("skipping product", zap.String("store_url", storeURL), zap.Error(err))
				continue
			}
			if err := s.repo.InsertProduct(ctx, p); err != nil {
				metrics.ObserveProduct("failed")
				s.logger.Warn("failed to insert product",
					zap.String("store_url", storeURL), zap.String("product", p.Name), zap.Error(err))
				continue
			}
			metrics.ObserveProduct("inserted")
			inserted++
		}
	}
	s.logger.Info("scraped products", zap.String("store_url", storeURL), zap.Int("count", inserted))
	return inserted, nil
}

func (s *Scraper) fetchPage(ctx context.Context, storeURL string, page int) ([]feedProduct, error) {
	feedURL, err := FeedURL(storeURL, s.cfg.PageLimit, page)
	if err != nil {
		return nil, err
	}
	resp, err := s.getter.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", discovery.ErrTransport, feedURL, resp.StatusCode)
	}
	var body feed
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", discovery.ErrParse, feedURL, err)
	}
	return body.Products, nil
}

func (s *Scraper) toProduct(fp feedProduct, storeURL, niche string) (discovery.Product, error) {
	if strings.TrimSpace(fp.Title) == "" {
		return discovery.Product{}, fmt.Errorf("%w: product has no title", discovery.ErrDataShape)
	}
	if len(fp.Variants) == 0 {
		return discovery.Product{}, fmt.Errorf("%w: product %q has no variants", discovery.ErrDataShape, fp.Title)
	}
	images := make([]string, 0, len(fp.Images))
	for _, img := range fp.Images {
		if img.Src != "" {
			images = append(images, img.Src)
		}
	}
	first := fp.Variants[0]
	price, err := parsePrice(first.Price)
	if err != nil {
		return discovery.Product{}, fmt.Errorf("%w: product %q has invalid price %s", discovery.ErrDataShape, fp.Title, first.Price)
	}
	return discovery.Product{
		Name:        fp.Title,
		Description: fp.BodyHTML,
		Category:    fp.ProductType,
		Niche:       niche,
		Images:      images,
		Price:       price,
		InStock:     first.Available,
		Seller:      storeURL,
		ScrapedAt:   s.clock.Now(),
	}, nil
}

// parsePrice accepts a price as a JSON string or number.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, err
		}
	}
	return decimal.NewFromString(strings.TrimSpace(text))
}

// FeedURL builds {store}/products.json?limit=N&page=P.
func FeedURL(storeURL string, limit, page int) (string, error) {
	u, err := url.Parse(strings.TrimRight(storeURL, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: store url %q", discovery.ErrDataShape, storeURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/products.json"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
