// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the Free Session pages and the JSON endpoints the page
// script talks to.
package api

import (
	"net/http"
	"sync/atomic"

	"github.com/ManuGH/freesession/internal/api/middleware"
	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/health"
	"github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/view"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CookieMount carries the most recent mount ID for requests that arrive
// without a mount query, such as the reward link opened in a new tab.
const CookieMount = "fs_mount"

// Config holds the HTTP-facing settings.
type Config struct {
	RewardURL      string
	CSP            string
	TracingService string
	APIRateLimit   int
	TrustedOrigins []string
	// SecureCookies marks cookies Secure; set when serving TLS.
	SecureCookies bool
}

// Server routes page and API requests to the gate service.
type Server struct {
	cfg       Config
	rewardURL atomic.Pointer[string]
	gates     *gate.Service
	view      *view.Renderer
	health    *health.Manager
	logger    zerolog.Logger
	router    chi.Router
}

// New builds the server and its router.
func New(cfg Config, gates *gate.Service, renderer *view.Renderer, hm *health.Manager) *Server {
	s := &Server{
		cfg:    cfg,
		gates:  gates,
		view:   renderer,
		health: hm,
		logger: log.WithComponent("api"),
	}
	s.rewardURL.Store(&cfg.RewardURL)
	s.router = s.routes()
	return s
}

// SetRewardURL swaps the reward target for subsequent redirects.
func (s *Server) SetRewardURL(u string) {
	s.rewardURL.Store(&u)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   s.cfg.CSP,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		APIRateLimit:          s.cfg.APIRateLimit,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Get("/", s.handleIndex)
	r.Get("/reward", s.handleReward)
	r.Method(http.MethodGet, "/manifest.json", s.view.ManifestHandler())
	r.Method(http.MethodGet, "/static/*", http.StripPrefix("/static", view.StaticHandler()))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/phase", s.handlePhase)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFProtection(s.cfg.TrustedOrigins...))
			r.With(middleware.PermissionRateLimit()).Post("/permission", s.handlePermission)
			r.Post("/unmount", s.handleUnmount)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	return r
}
