// Package netx holds small HTTP helpers shared by the sync and cache layers.
package netx

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ResolveURL resolves ref against base. Absolute refs are returned as is;
// an empty base leaves relative refs untouched.
func ResolveURL(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if r.IsAbs() || base == "" {
		return r.String(), nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	return b.ResolveReference(r).String(), nil
}

// IsSuccessStatus reports whether code is 2xx.
func IsSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// IsAPIPath reports whether path addresses the data API rather than the
// application shell.
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// RequestKey identifies a request for cache lookups: method, path and query.
func RequestKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

// JoinOrigin maps a request path and query onto origin the way a reverse
// proxy does: origin's path is a prefix joined with a single slash and both
// queries are kept.
func JoinOrigin(origin, ref *url.URL) *url.URL {
	out := *origin
	out.RawPath = ""
	out.Path = joinSlash(origin.Path, ref.Path)
	switch {
	case origin.RawQuery == "":
		out.RawQuery = ref.RawQuery
	case ref.RawQuery != "":
		out.RawQuery = origin.RawQuery + "&" + ref.RawQuery
	}
	return &out
}

func joinSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
