package location

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/storefront-finder/internal/discovery"
)

// TextGeocoder turns free text into a location. Implementations report
// ok=false when the text carries no recognizable address.
type TextGeocoder interface {
	Geocode(text string) (discovery.LocationResult, bool)
}

// Address patterns, tried in order.
var defaultPatterns = []*regexp.Regexp{
	// City, ST
	regexp.MustCompile(`([A-Z][a-z]+,\s?[A-Z]{2})`),
	// Multi Word City, ST
	regexp.MustCompile(`([A-Z][a-z]+\s?[A-Z][a-z]+,?\s?[A-Z]{2})`),
	// 123 Street, City, ST 12345
	regexp.MustCompile(`(\d{1,5}\s\w+.*?,\s?[A-Z][a-z]+\s?,?\s?[A-Z]{2}\s?\d{5})`),
}

var (
	trailingZIP  = regexp.MustCompile(`\s?\d{5}$`)
	trailingCode = regexp.MustCompile(`([A-Z]{2})$`)
)

// RegexGeocoder matches US-style "City, ST" address fragments.
//
// The two-letter code it returns is a state code, not a country; it is
// placed in Country because free text carries no country signal.
type RegexGeocoder struct {
	patterns []*regexp.Regexp
}

// NewRegexGeocoder returns a geocoder using the built-in address patterns.
func NewRegexGeocoder() *RegexGeocoder {
	return &RegexGeocoder{patterns: defaultPatterns}
}

// Geocode returns the location parsed from the first pattern that matches.
func (g *RegexGeocoder) Geocode(text string) (discovery.LocationResult, bool) {
	if strings.TrimSpace(text) == "" {
		return discovery.LocationResult{}, false
	}
	for _, re := range g.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if res, ok := parseMatch(m[1]); ok {
			return res, true
		}
	}
	return discovery.LocationResult{}, false
}

// parseMatch splits "..., City, ST 12345" into city and code.
func parseMatch(match string) (discovery.LocationResult, bool) {
	s := strings.TrimSpace(trailingZIP.ReplaceAllString(strings.TrimSpace(match), ""))
	code := trailingCode.FindString(s)
	if code == "" {
		return discovery.LocationResult{}, false
	}
	head := strings.TrimRight(strings.TrimSpace(strings.TrimSuffix(s, code)), ",")
	if i := strings.LastIndex(head, ","); i >= 0 {
		head = head[i+1:]
	}
	city := strings.TrimSpace(head)
	if city == "" {
		city = discovery.UnknownCity
	}
	return discovery.LocationResult{
		Country: code,
		City:    city,
		Source:  discovery.SourceTextPattern,
	}, true
}
