// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/go-chi/httprate"
)

// RateLimitConfig configures a sliding-window limiter.
type RateLimitConfig struct {
	RequestLimit int
	WindowSize   time.Duration
	// KeyFuncs build the limiter key; the default is the client IP.
	KeyFuncs []httprate.KeyFunc
}

// RateLimit creates a sliding-window rate limiter backed by httprate.
// Rejections are JSON problems carrying the request ID.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keys := cfg.KeyFuncs
	if len(keys) == 0 {
		keys = []httprate.KeyFunc{httprate.KeyByIP}
	}
	retryAfter := strconv.Itoa(int(cfg.WindowSize.Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":      "rate_limit_exceeded",
				"detail":     "Too many requests. Please try again later.",
				"request_id": xglog.RequestIDFromContext(r.Context()),
			})
		}),
	)
}

// PermissionRateLimit bounds permission requests, each of which registers
// with the push provider: 10 per minute per IP and endpoint.
func PermissionRateLimit() func(http.Handler) http.Handler {
	return RateLimit(RateLimitConfig{
		RequestLimit: 10,
		WindowSize:   time.Minute,
		KeyFuncs:     []httprate.KeyFunc{httprate.KeyByIP, httprate.KeyByEndpoint},
	})
}

// APIRateLimit bounds all traffic per IP. The default of 600 per minute
// leaves room for a few open pages polling every few seconds.
func APIRateLimit(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 600
	}
	return RateLimit(RateLimitConfig{RequestLimit: limit, WindowSize: time.Minute})
}
