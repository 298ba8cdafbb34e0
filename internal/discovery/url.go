package discovery

import (
	"fmt"
	"net/url"
	"strings"
)

// StoreKey reduces a storefront URL to its persistence key, https://{host}.
// The scheme is forced to https, the host lowercased, default ports, path,
// query and fragment dropped.
func StoreKey(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":443")
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ".")
	return "https://" + host, nil
}

// StoreName derives a store name from the first label of the URL's host.
func StoreName(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "//"); i >= 0 {
		rest = rest[i+2:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.Index(rest, "."); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// IsHTTPURL reports whether rawURL is an absolute http or https URL with a host.
func IsHTTPURL(rawURL string) bool {
	_, err := parseAbsolute(rawURL)
	return err == nil
}

func parseAbsolute(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: parse url %q: %v", ErrDataShape, rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: url %q is not http(s)", ErrDataShape, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: url %q has no host", ErrDataShape, rawURL)
	}
	return u, nil
}
