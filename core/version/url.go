package version

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalizeURL normalizes a URL so that trivially different spellings of
// the same resource map to one page row: the host is lowercased, the fragment
// is dropped, default ports are removed, and a trailing slash is trimmed
// except on the root path.
func CanonicalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}

	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)

	host := parsed.Hostname()
	port := parsed.Port()
	if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
		parsed.Host = host
	}

	if parsed.Path == "" {
		parsed.Path = "/"
	} else if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}
