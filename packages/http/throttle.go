package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrThrottleWait is returned when waiting for a throttle token fails,
	// usually because the request context ended first.
	ErrThrottleWait = errors.New("throttle wait failed")
)

// throttle limits outbound calls with a token bucket shared by every call of
// one client.
func throttle(limiter *rate.Limiter, logger *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			ctx := r.Context()
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			start := time.Now()
			exhausted := limiter.Tokens() < 1
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, fmt.Errorf("%w: %w", ErrThrottleWait, err)
			}
			if exhausted {
				logger.Debug("throttle wait complete",
					"waited", time.Since(start).String(),
					"rate", float64(limiter.Limit()),
					"burst", limiter.Burst(),
					"path", r.URL.Path,
				)
			}

			return next.RoundTrip(r)
		})
	}
}
