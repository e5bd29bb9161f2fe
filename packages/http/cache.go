package http

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/nicehttp/packages/cache"
)

// CacheHeader is set to HIT on responses served from the cache and MISS on
// responses that were stored.
const CacheHeader = "X-Cache"

type readCloser struct {
	io.Reader
	io.Closer
}

// forceCache serves GET responses younger than maxAge from store and stores
// successful responses of at most maxSize bytes. Cache-Control and Pragma are
// ignored in both directions.
func forceCache(store cache.Store, maxAge time.Duration, maxSize int64, logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodGet {
				return next.RoundTrip(r)
			}

			ctx := r.Context()
			key := cache.Key(r.Method, r.URL.String())

			e, ok, err := store.Get(ctx, key)
			if err != nil {
				logger.Warn("cache lookup failed", "key", key, "error", err)
			}
			if ok && e.Fresh(maxAge, time.Now()) {
				logger.Debug("cache hit", "key", key, "age", time.Since(e.StoredAt).String())
				return cachedResponse(r, e), nil
			}

			resp, err := next.RoundTrip(r)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return resp, nil
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
			if err != nil || int64(len(data)) > maxSize {
				resp.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(data), resp.Body), Closer: resp.Body}
				return resp, nil
			}
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(data))

			entry := &cache.Entry{
				StatusCode: resp.StatusCode,
				Header:     resp.Header.Clone(),
				Body:       data,
				StoredAt:   time.Now(),
			}
			if err := store.Put(ctx, key, entry); err != nil {
				logger.Warn("cache store failed", "key", key, "error", err)
			} else {
				resp.Header.Set(CacheHeader, "MISS")
			}
			return resp, nil
		})
	}
}

func cachedResponse(r *http.Request, e *cache.Entry) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set(CacheHeader, "HIT")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode)),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       r,
	}
}
