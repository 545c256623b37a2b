package retrieval

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve turns href into an absolute URL relative to base. Fragments and
// query strings are kept as written so that the result can serve as a
// deduplication key.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("parse href: %w", err)
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// SameHost reports whether two URLs share a network location, port included.
func SameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host)
}
