// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/freesession/internal/log"
	"github.com/rs/zerolog"
)

// ShutdownHook releases a resource during graceful shutdown.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP listeners and the ordered shutdown of everything the
// daemon wired up.
type Manager interface {
	// Start binds the listeners and blocks until ctx ends or a server fails.
	Start(ctx context.Context) error

	// Shutdown stops the servers, then runs hooks newest first.
	Shutdown(ctx context.Context) error

	RegisterShutdownHook(name string, hook ShutdownHook)
}

// boundServer is an http.Server with its listener already open.
type boundServer struct {
	name string
	srv  *http.Server
	ln   net.Listener
	tls  bool
}

type manager struct {
	serverCfg ServerConfig
	deps      Deps
	logger    zerolog.Logger

	mu       sync.Mutex
	servers  []boundServer
	hooks    []namedHook
	started  bool
	stopping bool
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

// NewManager validates deps and returns an idle manager.
func NewManager(serverCfg ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		serverCfg: serverCfg,
		deps:      deps,
		logger:    deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	cfg := m.deps.Config
	m.logger.Info().
		Str("listen", cfg.APIListenAddr).
		Str("metrics_listen", cfg.MetricsListenAddr).
		Dur("shutdown_timeout", m.serverCfg.ShutdownTimeout).
		Msg("starting daemon manager")

	// Bind everything before serving so an address conflict fails Start
	// instead of racing the first request.
	servers, err := m.bind()
	m.mu.Lock()
	m.servers = servers
	m.mu.Unlock()
	if err != nil {
		return m.stopAfter(ctx, err)
	}

	failed := make(chan error, len(servers))
	for _, s := range servers {
		go m.serve(s, failed)
	}

	select {
	case err := <-failed:
		return m.stopAfter(ctx, err)
	case <-ctx.Done():
		m.logger.Info().Msg("shutdown signal received")
		return m.stopAfter(ctx, nil)
	}
}

// bind opens the API listener and, when configured, the metrics listener.
// On error the listeners opened so far are returned so Shutdown closes them.
func (m *manager) bind() ([]boundServer, error) {
	cfg := m.deps.Config
	api := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.serverCfg.ReadTimeout,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
		WriteTimeout:      m.serverCfg.WriteTimeout,
		IdleTimeout:       m.serverCfg.IdleTimeout,
		MaxHeaderBytes:    m.serverCfg.MaxHeaderBytes,
	}
	useTLS := cfg.TLSCert != "" && cfg.TLSKey != ""

	var out []boundServer
	ln, err := net.Listen("tcp", cfg.APIListenAddr)
	if err != nil {
		return out, fmt.Errorf("API server: %w", err)
	}
	out = append(out, boundServer{name: "API server", srv: api, ln: ln, tls: useTLS})

	if cfg.MetricsListenAddr == "" || m.deps.MetricsHandler == nil {
		return out, nil
	}
	mln, err := net.Listen("tcp", cfg.MetricsListenAddr)
	if err != nil {
		return out, fmt.Errorf("metrics server: %w", err)
	}
	metricsSrv := &http.Server{
		Handler:           m.deps.MetricsHandler,
		ReadHeaderTimeout: m.serverCfg.ReadTimeout / 2,
	}
	return append(out, boundServer{name: "metrics server", srv: metricsSrv, ln: mln}), nil
}

func (m *manager) serve(s boundServer, failed chan<- error) {
	scheme := "http"
	if s.tls {
		scheme = "https"
	}
	m.logger.Info().Str("addr", s.ln.Addr().String()).Str("scheme", scheme).Msgf("%s listening", s.name)

	var err error
	if s.tls {
		err = s.srv.ServeTLS(s.ln, m.deps.Config.TLSCert, m.deps.Config.TLSKey)
	} else {
		err = s.srv.Serve(s.ln)
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	m.logger.Error().Err(err).Str(log.FieldEvent, "server.failed").Str("server", s.name).Msg("server failed")
	failed <- fmt.Errorf("%s: %w", s.name, err)
}

// stopAfter shuts down on a context detached from the caller's so teardown
// still gets its full budget after cancellation. cause, if any, is returned
// joined with shutdown errors.
func (m *manager) stopAfter(ctx context.Context, cause error) error {
	if cause != nil {
		m.logger.Error().Err(cause).Msg("server error, initiating shutdown")
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	err := m.Shutdown(shutdownCtx)
	switch {
	case cause == nil:
		return err
	case err == nil:
		return cause
	default:
		return fmt.Errorf("server error and shutdown failure: %w", errors.Join(cause, err))
	}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown context is nil")
	}

	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	servers := m.servers
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("shutting down daemon manager")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.serverCfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, s := range servers {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s shutdown: %w", s.name, err))
		}
		// Shutdown only closes listeners Serve has picked up.
		_ = s.ln.Close()
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		began := time.Now()
		err := h.fn(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur(log.FieldDuration, time.Since(began)).Msg("shutdown hook done")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	m.logger.Info().Msg("daemon manager stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
}
