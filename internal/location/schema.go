package location

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// SchemaStrategy reads postal addresses from JSON-LD blocks on the root page.
type SchemaStrategy struct {
	defaultCountry string
	logger         *zap.Logger
}

// NewSchemaStrategy builds a SchemaStrategy. Missing addressCountry values
// resolve to defaultCountry.
func NewSchemaStrategy(defaultCountry string, logger *zap.Logger) *SchemaStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaStrategy{defaultCountry: defaultCountry, logger: logger}
}

func (s *SchemaStrategy) Name() string { return "schema" }

func (s *SchemaStrategy) Locate(_ context.Context, probe *Probe) (discovery.LocationResult, bool) {
	if probe.Root == nil || probe.Root.Doc == nil {
		return discovery.LocationResult{}, false
	}
	return s.FromDocument(probe.Root.Doc, probe.StoreURL)
}

// FromDocument returns the location of the first object carrying an address
// across all JSON-LD blocks in document order.
func (s *SchemaStrategy) FromDocument(doc *goquery.Document, storeURL string) (discovery.LocationResult, bool) {
	var (
		result discovery.LocationResult
		found  bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, script *goquery.Selection) bool {
		raw := strings.TrimSpace(script.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			s.logger.Debug("skipping malformed json-ld block",
				zap.String("store_url", storeURL), zap.Int("block", i), zap.Error(err))
			return true
		}
		address, ok := findAddress(data)
		if !ok {
			return true
		}
		result = discovery.LocationResult{
			Country: s.country(address["addressCountry"]),
			City:    stringOr(address["addressLocality"], discovery.UnknownCity),
			Source:  discovery.SourceSchema,
		}
		found = true
		return false
	})
	return result, found
}

// findAddress searches an object, a list in order, or an @graph container
// for the first object whose address field is itself an object.
func findAddress(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if addr, ok := t["address"].(map[string]any); ok {
			return addr, true
		}
		if graph, ok := t["@graph"]; ok {
			return findAddress(graph)
		}
	case []any:
		for _, item := range t {
			if addr, ok := findAddress(item); ok {
				return addr, true
			}
		}
	}
	return nil, false
}

func (s *SchemaStrategy) country(v any) string {
	switch t := v.(type) {
	case string:
		return stringOr(t, s.defaultCountry)
	case map[string]any:
		return stringOr(t["name"], s.defaultCountry)
	default:
		return s.defaultCountry
	}
}

func stringOr(v any, fallback string) string {
	if str, ok := v.(string); ok {
		if str = strings.TrimSpace(str); str != "" {
			return str
		}
	}
	return fallback
}
