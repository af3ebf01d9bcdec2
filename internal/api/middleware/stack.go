// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"

	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// StackConfig selects the ingress middleware.
type StackConfig struct {
	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// APIRateLimit is requests per minute per IP; zero disables the global
	// limiter.
	APIRateLimit int
}

// NewRouter returns a chi router with the stack installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Stack(cfg)...)
	return r
}

// Stack returns the middleware in order, outermost first. Panics are caught
// before anything else runs so every later layer can assume a request ID.
func Stack(cfg StackConfig) []func(http.Handler) http.Handler {
	mws := []func(http.Handler) http.Handler{Recoverer, RequestID, chimw.CleanPath}
	if cfg.EnableSecurityHeaders {
		mws = append(mws, SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		mws = append(mws, Metrics())
	}
	if cfg.TracingService != "" {
		mws = append(mws, OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		mws = append(mws, xglog.Middleware())
	}
	if cfg.APIRateLimit > 0 {
		mws = append(mws, APIRateLimit(cfg.APIRateLimit))
	}
	return mws
}
