// Package urlutil holds the small set of URL predicates and constructors the
// crawler needs beyond what net/url already exposes.
package urlutil

import (
	"fmt"
	"net/url"
)

// IsHTTPS reports whether u's scheme is http or https. The name keeps the
// spec's shorthand even though it also admits plain http.
func IsHTTPS(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// IsDomainRoot reports whether u points at the root of its authority: an
// empty or "/" path, no query string, and a non-empty host.
func IsDomainRoot(u *url.URL) bool {
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Host != ""
}

// WithPathOnly rebuilds u keeping only its scheme and authority, replacing
// the path with p (which must not start with "/"; one is inserted). It
// never fails for a URL that already had a valid scheme and host.
func WithPathOnly(u *url.URL, p string) (*url.URL, error) {
	raw := fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, p)
	return url.Parse(raw)
}

// ClearFragment returns a copy of u with its fragment removed.
func ClearFragment(u *url.URL) *url.URL {
	cp := *u
	cp.Fragment = ""
	cp.RawFragment = ""
	return &cp
}
