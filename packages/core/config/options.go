package config

import (
	"fmt"

	"github.com/abdul-hamid-achik/nicehttp/packages/cache"
	"github.com/abdul-hamid-achik/nicehttp/packages/doh"
	"github.com/abdul-hamid-achik/nicehttp/packages/http"
)

// ClientOptions translates the config into client options. The returned
// close function releases the cache store, if one was opened.
func (c *Config) ClientOptions() ([]http.ClientOption, func() error, error) {
	noop := func() error { return nil }

	opts := []http.ClientOption{
		http.WithTimeout(c.Timeout),
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}

	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if c.UserAgent != "" {
		opts = append(opts, http.WithDefaultHeader("User-Agent", c.UserAgent))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	if c.Referer != "" {
		opts = append(opts, http.WithDefaultReferer(c.Referer))
	}
	if len(c.Cookies) > 0 {
		opts = append(opts, http.WithDefaultCookies(c.Cookies))
	}
	if c.MaxTextSize > 0 {
		opts = append(opts, http.WithMaxTextSize(c.MaxTextSize))
	}
	if c.Throttle != nil {
		opts = append(opts, http.WithThrottle(c.Throttle.RPS, c.Throttle.Burst))
	}
	if c.GetRequestID() {
		opts = append(opts, http.WithRequestID())
	}

	if c.DoH != nil {
		resolver, err := doh.NewResolver(c.DoH.URL, c.DoH.Bootstrap)
		if err != nil {
			return nil, noop, fmt.Errorf("configuring DNS over HTTPS: %w", err)
		}
		opts = append(opts, http.WithResolver(resolver))
	}

	if c.CacheTime <= 0 {
		return opts, noop, nil
	}

	var store cache.Store = cache.NewMemoryStore()
	if c.CacheDB != "" {
		db, err := cache.OpenSQLite(c.CacheDB)
		if err != nil {
			return nil, noop, fmt.Errorf("opening cache: %w", err)
		}
		store = db
	}

	opts = append(opts, http.WithCacheStore(store), http.WithDefaultCacheTime(c.CacheTime))
	return opts, store.Close, nil
}
