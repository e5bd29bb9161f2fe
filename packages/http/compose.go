package http

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// ComposeHeaders merges client defaults and per-call values into the
// outgoing header set.
//
// Precedence, highest first: referer, call headers, the Cookie header built
// from the merged cookie maps, default headers, default cookies. Keys are
// canonicalized so collisions are case-insensitive. An empty referer is
// treated as absent and falls back to defaultReferer.
func ComposeHeaders(
	defaultHeaders, headers map[string]string,
	defaultReferer, referer string,
	defaultCookies, cookies map[string]string,
) http.Header {
	h := make(http.Header, len(defaultHeaders)+len(headers)+2)

	for k, v := range defaultHeaders {
		h.Set(k, v)
	}

	merged := make(map[string]string, len(defaultCookies)+len(cookies))
	maps.Copy(merged, defaultCookies)
	maps.Copy(merged, cookies)
	if len(merged) > 0 {
		h.Set("Cookie", CookieHeader(merged))
	}

	for k, v := range headers {
		h.Set(k, v)
	}

	if referer == "" {
		referer = defaultReferer
	}
	if referer != "" {
		h.Set("Referer", referer)
	}

	return h
}

// CookieHeader formats cookies as "name=value;" pairs joined by a space,
// ordered by name.
func CookieHeader(cookies map[string]string) string {
	pairs := make([]string, 0, len(cookies))
	for _, name := range slices.Sorted(maps.Keys(cookies)) {
		pairs = append(pairs, name+"="+cookies[name]+";")
	}
	return strings.Join(pairs, " ")
}

// AppendParams appends every non-nil parameter to the query string of
// rawURL, keeping any existing query and fragment. Keys are appended in
// sorted order.
func AppendParams(rawURL string, params map[string]*string) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	query := u.RawQuery
	appended := false
	for _, k := range slices.Sorted(maps.Keys(params)) {
		v := params[k]
		if v == nil {
			continue
		}
		pair := url.QueryEscape(k) + "=" + url.QueryEscape(*v)
		if query == "" {
			query = pair
		} else {
			query += "&" + pair
		}
		appended = true
	}
	if !appended {
		return rawURL, nil
	}

	u.RawQuery = query
	u.ForceQuery = false
	return u.String(), nil
}
