package location

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// LinkedPageStrategy follows the first root-page anchor whose text contains
// a keyword and geocodes the linked page's visible text.
type LinkedPageStrategy struct {
	keyword  string
	geocoder TextGeocoder
	logger   *zap.Logger
}

// NewLinkedPageStrategy builds a strategy for anchors containing keyword.
func NewLinkedPageStrategy(keyword string, geocoder TextGeocoder, logger *zap.Logger) *LinkedPageStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkedPageStrategy{
		keyword:  strings.ToLower(keyword),
		geocoder: geocoder,
		logger:   logger,
	}
}

func (s *LinkedPageStrategy) Name() string { return s.keyword + "_page" }

func (s *LinkedPageStrategy) Locate(ctx context.Context, probe *Probe) (discovery.LocationResult, bool) {
	if probe.Root == nil || probe.Root.Doc == nil {
		return discovery.LocationResult{}, false
	}
	href, ok := FindLink(probe.Root.Doc, s.keyword)
	if !ok {
		return discovery.LocationResult{}, false
	}
	target, err := ResolveLink(probe.StoreURL, href)
	if err != nil {
		s.logger.Debug("unusable link", zap.String("href", href), zap.Error(err))
		return discovery.LocationResult{}, false
	}
	page, err := probe.Fetcher.FetchPage(ctx, target)
	if err != nil {
		s.logger.Debug("linked page unavailable", zap.String("url", target), zap.Error(err))
		return discovery.LocationResult{}, false
	}
	return s.geocoder.Geocode(VisibleText(page.Doc.Selection))
}

// FooterStrategy geocodes the visible text of the root page's footer.
type FooterStrategy struct {
	geocoder TextGeocoder
}

// NewFooterStrategy builds a FooterStrategy.
func NewFooterStrategy(geocoder TextGeocoder) *FooterStrategy {
	return &FooterStrategy{geocoder: geocoder}
}

func (s *FooterStrategy) Name() string { return "footer" }

func (s *FooterStrategy) Locate(_ context.Context, probe *Probe) (discovery.LocationResult, bool) {
	if probe.Root == nil || probe.Root.Doc == nil {
		return discovery.LocationResult{}, false
	}
	footer := probe.Root.Doc.Find("footer").First()
	if footer.Length() == 0 {
		return discovery.LocationResult{}, false
	}
	return s.geocoder.Geocode(VisibleText(footer))
}

// FindLink returns the href of the first anchor whose text contains keyword,
// compared case-insensitively.
func FindLink(doc *goquery.Document, keyword string) (string, bool) {
	keyword = strings.ToLower(keyword)
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(a.Text()), keyword) {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	href = strings.TrimSpace(href)
	return href, href != ""
}

// ResolveLink resolves href against base and requires an http(s) result.
func ResolveLink(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	resolved := b.ResolveReference(ref)
	if !discovery.IsHTTPURL(resolved.String()) {
		return "", discovery.ErrDataShape
	}
	resolved.Fragment = ""
	return resolved.String(), nil
}

// VisibleText joins the text nodes under sel with single spaces, skipping
// script, style and other non-rendered elements.
func VisibleText(sel *goquery.Selection) string {
	var parts []string
	for _, n := range sel.Nodes {
		parts = appendText(parts, n)
	}
	return strings.Join(parts, " ")
}

var hiddenElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

func appendText(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		return append(parts, strings.Fields(n.Data)...)
	case html.ElementNode:
		if hiddenElements[n.Data] {
			return parts
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendText(parts, c)
	}
	return parts
}
