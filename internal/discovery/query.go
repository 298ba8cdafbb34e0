package discovery

import "strings"

// DefaultExclusions are URL path fragments that rarely point at a storefront root.
var DefaultExclusions = []string{
	"collections",
	"products",
	"cart",
	"account",
	"checkout",
	"search",
	"blog",
	"pages",
	"help",
}

// BuildQuery renders the search text for a niche restricted to the platform's
// native domain, minus the excluded URL paths.
func BuildQuery(nativeDomain, niche string, exclusions []string) string {
	var b strings.Builder
	nativeDomain = strings.TrimPrefix(strings.TrimSpace(nativeDomain), ".")
	if nativeDomain != "" {
		b.WriteString("site:.")
		b.WriteString(nativeDomain)
		b.WriteByte(' ')
	}
	b.WriteString(strings.TrimSpace(niche))
	for _, ex := range exclusions {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}
		b.WriteString(" -inurl:")
		b.WriteString(ex)
	}
	return b.String()
}
