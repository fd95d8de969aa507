package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var multiSlash = regexp.MustCompile(`/{2,}`)

// Canonicalize implements spec §4.9's dedup rule: remove fragments,
// collapse slashes, lowercase host.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = multiSlash.ReplaceAllString(u.Path, "/")
	return u.String(), nil
}

// Resolve resolves ref against base, the way the crawler turns a relative
// anchor into an absolute rdnt:// URL before enqueueing it.
func Resolve(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// SameHost reports whether two rdnt:// URLs target the same registered
// name (spec §4.9: off-site links are only enqueued when follow_external
// is set).
func SameHost(a, b string) bool {
	ua, err1 := url.Parse(a)
	ub, err2 := url.Parse(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
