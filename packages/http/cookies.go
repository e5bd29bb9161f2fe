package http

import (
	"maps"
	"net/http"
	"net/url"
	"slices"
	"sync"
)

// CookieStore is an http.CookieJar keyed by cookie name only. Domain, path
// and expiry are not tracked, so one store shared across hosts sends every
// cookie to every host.
type CookieStore struct {
	mu      sync.RWMutex
	cookies map[string]string
}

func NewCookieStore() *CookieStore {
	return &CookieStore{cookies: make(map[string]string)}
}

// SetCookies merges cookies into the store, the last value for a name wins.
// The URL is ignored.
func (s *CookieStore) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		s.cookies[c.Name] = c.Value
	}
}

// Cookies returns every stored cookie ordered by name. The URL is ignored.
func (s *CookieStore) Cookies(_ *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, name := range slices.Sorted(maps.Keys(s.cookies)) {
		out = append(out, &http.Cookie{Name: name, Value: s.cookies[name]})
	}
	return out
}

// Set stores a single cookie.
func (s *CookieStore) Set(name, value string) {
	s.SetCookies(nil, []*http.Cookie{{Name: name, Value: value}})
}

// Values returns a snapshot of the store.
func (s *CookieStore) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.cookies)
}

func (s *CookieStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cookies)
}

func (s *CookieStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cookies)
}
