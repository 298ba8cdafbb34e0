// Package canonical resolves candidate storefront URLs to their canonical
// domain, collapsing native platform subdomains into custom domains when a
// redirect points elsewhere.
package canonical

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// DefaultNativeDomain is the platform's shared storefront base domain.
const DefaultNativeDomain = "myshopify.com"

// Canonicalizer implements discovery.Canonicalizer on top of a Getter that
// follows redirects.
type Canonicalizer struct {
	getter       discovery.Getter
	nativeDomain string
	logger       *zap.Logger
}

// New builds a Canonicalizer. An empty nativeDomain falls back to DefaultNativeDomain.
func New(getter discovery.Getter, nativeDomain string, logger *zap.Logger) *Canonicalizer {
	if nativeDomain == "" {
		nativeDomain = DefaultNativeDomain
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Canonicalizer{
		getter:       getter,
		nativeDomain: strings.ToLower(nativeDomain),
		logger:       logger,
	}
}

// Canonicalize follows redirects from rawURL. When the final host is outside
// the native domain the store lives on a custom domain and the result is
// https://{host}; otherwise rawURL is returned unchanged. Any HTTP status is
// accepted; only transport failures produce an error.
func (c *Canonicalizer) Canonicalize(ctx context.Context, rawURL string) (discovery.Resolution, error) {
	resp, err := c.getter.Get(ctx, rawURL)
	if err != nil {
		c.logger.Warn("error extracting base url", zap.String("url", rawURL), zap.Error(err))
		return discovery.Resolution{}, fmt.Errorf("canonicalize %s: %w", rawURL, err)
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}
	parsed, err := url.Parse(finalURL)
	if err != nil || parsed.Host == "" {
		c.logger.Warn("final url has no host", zap.String("url", rawURL), zap.String("final_url", finalURL))
		return discovery.Resolution{}, fmt.Errorf("canonicalize %s: %w: final url %q has no host",
			rawURL, discovery.ErrDataShape, finalURL)
	}

	host := strings.ToLower(parsed.Host)
	if !strings.Contains(host, c.nativeDomain) {
		c.logger.Debug("redirect detected to custom domain", zap.String("url", rawURL), zap.String("host", host))
		return discovery.Resolution{
			CanonicalURL: "https://" + host,
			FinalURL:     finalURL,
			CustomDomain: true,
		}, nil
	}
	return discovery.Resolution{CanonicalURL: rawURL}, nil
}
