package transport

import (
	"log/slog"
	"net/http"
	"time"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Logging is a RoundTripper middleware factory that logs outgoing requests
// at debug level.
func Logging(logger *slog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)

			duration := time.Since(start)
			if err != nil {
				logger.Debug("request failed",
					"method", r.Method,
					"url", r.URL.Redacted(),
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				return nil, err
			}

			logger.Debug("sent request",
				"method", r.Method,
				"url", r.URL.Redacted(),
				"status", resp.StatusCode,
				"bytes", r.ContentLength,
				"duration_ms", duration.Milliseconds(),
			)
			return resp, nil
		})
	}
}

// NewHTTPClient returns a client with the given timeout whose requests are
// logged through logger.
func NewHTTPClient(timeout time.Duration, logger *slog.Logger) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: Logging(logger.With("component", "http"))(http.DefaultTransport),
	}
}
