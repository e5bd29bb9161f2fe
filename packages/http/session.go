package http

import (
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// Session is a Client that keeps the cookies set by its responses and sends
// them with every later request, redirects included.
//
// Each request carries one Cookie header. On a name collision a call cookie
// beats a stored cookie, and a stored cookie beats a default cookie.
//
// Cookies are keyed by name alone unless WithScopedCookies is set, so a
// session talking to several hosts sends every host every cookie.
type Session struct {
	*Client
	jar http.CookieJar
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithScopedCookies stores cookies per domain and path with expiry, using
// the public suffix list. Use it when one session talks to several hosts.
func WithScopedCookies() SessionOption {
	return func(s *Session) {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		s.jar = jar
	}
}

// WithCookieJar replaces the session's cookie store.
func WithCookieJar(jar http.CookieJar) SessionOption {
	return func(s *Session) {
		s.jar = jar
	}
}

// NewSession returns a session sharing c's defaults and connection pool. By
// default cookies are kept in a name-keyed CookieStore.
func NewSession(c *Client, opts ...SessionOption) *Session {
	s := &Session{jar: NewCookieStore()}
	for _, opt := range opts {
		opt(s)
	}

	clone := *c
	clone.jar = s.jar
	s.Client = &clone
	return s
}

// Jar returns the session's cookie jar.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Cookies returns the cookies the session would send to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// Store returns the name-keyed store, or nil if the session uses another jar.
func (s *Session) Store() *CookieStore {
	store, _ := s.jar.(*CookieStore)
	return store
}

// sessionCookies merges defaults, the cookies jar holds for u and the call's
// cookies. Later sources win on a name collision.
func sessionCookies(jar http.CookieJar, u *url.URL, defaults, cookies map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(cookies))
	maps.Copy(merged, defaults)
	for _, c := range jar.Cookies(u) {
		merged[c.Name] = c.Value
	}
	maps.Copy(merged, cookies)
	return merged
}

// keepCookies saves the Set-Cookie headers of every hop in jar. When compose
// is set it also rebuilds the Cookie header of each redirect hop, so cookies
// set by an earlier hop are sent on.
func keepCookies(jar http.CookieJar, defaults, cookies map[string]string, compose bool) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if compose && r.Response != nil {
				if merged := sessionCookies(jar, r.URL, defaults, cookies); len(merged) > 0 {
					r = r.Clone(r.Context())
					r.Header.Set("Cookie", CookieHeader(merged))
				}
			}

			resp, err := next.RoundTrip(r)
			if err != nil {
				return nil, err
			}
			if rc := resp.Cookies(); len(rc) > 0 {
				jar.SetCookies(r.URL, rc)
			}
			return resp, nil
		})
	}
}

func hasHeader(headers map[string]string, key string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == key {
			return true
		}
	}
	return false
}
