package model

import (
	"fmt"
	"net/url"
	"strings"
)

// defaultScheme is prepended to URLs given without a scheme.
const defaultScheme = "https"

// NormalizeURL converts a user-supplied URL into the canonical form used for
// navigation and as the cache key.
//
// The rules are:
//   - a missing scheme defaults to https://
//   - scheme and host are lowercased
//   - the fragment is dropped
//   - trailing slashes of the path are removed
//
// So "example.com/", "https://example.com#x" and "https://example.com" all
// normalize to "https://example.com".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyURL
	}
	if !strings.Contains(raw, "://") {
		raw = defaultScheme + "://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")

	return u.String(), nil
}

// Hostname returns the lowercased host of rawURL without port.
// It returns an empty string if rawURL cannot be parsed.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// IsHTTPS reports whether rawURL uses the https scheme.
func IsHTTPS(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https")
}
