// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gate

import (
	"context"
	"errors"
	"sync"
	"time"

	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/metrics"
	"github.com/ManuGH/freesession/internal/phase"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/standalone"
	"github.com/ManuGH/freesession/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMountTTL = 10 * time.Minute

	reasonExplicit = "explicit"
	reasonIdle     = "idle"
	reasonShutdown = "shutdown"
)

var (
	// ErrUnknownMount is returned for IDs that are not (or no longer) mounted.
	ErrUnknownMount = errors.New("gate: unknown mount")
	// ErrNotStandalone rejects push operations from browser-tab mounts.
	ErrNotStandalone = errors.New("gate: mount is not running as an installed app")
	// ErrClosed is returned by Mount after Close.
	ErrClosed = errors.New("gate: service closed")
)

// Config bounds mount lifetime and polling.
type Config struct {
	PollInterval time.Duration
	MountTTL     time.Duration
}

// Service is the registry of mounted pages.
type Service struct {
	cfg        Config
	client     *push.Client
	permission *platform.ReportedPermission
	logger     zerolog.Logger
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	mounts map[string]*Gate
	closed bool
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, used by tests that drive Sweep.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the process-wide push client and the browser-reported
// permission into a mount registry.
func NewService(cfg Config, client *push.Client, permission *platform.ReportedPermission, opts ...Option) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = push.DefaultPollInterval
	}
	if cfg.MountTTL <= 0 {
		cfg.MountTTL = DefaultMountTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:        cfg,
		client:     client,
		permission: permission,
		logger:     xglog.WithComponent("gate"),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		mounts:     make(map[string]*Gate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount registers a page. The standalone decision is made once here and
// never revisited for this mount. Only standalone mounts touch the push
// client; their background work is bound to the service, not to ctx.
func (s *Service) Mount(ctx context.Context, signals platform.Signals, os platform.OS) (*Gate, error) {
	isStandalone := standalone.Detect(signals)
	now := s.now()

	g := &Gate{
		id:         uuid.NewString(),
		os:         os,
		standalone: isStandalone,
		client:     s.client,
		lastSeen:   now,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if isStandalone {
		g.resolver = phase.NewResolver(true, s.client.Broadcaster())
		runCtx, cancel := context.WithCancel(s.ctx)
		g.cancel = cancel
		g.done = make(chan struct{})
		go s.run(runCtx, g)
	} else {
		g.resolver = phase.NewResolver(false, nil)
	}
	s.mounts[g.id] = g
	active := len(s.mounts)
	s.mu.Unlock()

	mode := "browser"
	if isStandalone {
		mode = "standalone"
	}
	metrics.IncMount(mode)
	metrics.SetMountsActive(active)
	trace.SpanFromContext(ctx).AddEvent("gate.mounted",
		trace.WithAttributes(telemetry.GateAttributes(g.id, string(g.resolver.Current()), isStandalone)...))

	logger := xglog.WithContext(xglog.ContextWithMountID(ctx, g.id), s.logger)
	logger.Info().
		Str(xglog.FieldEvent, "gate.mounted").
		Bool(xglog.FieldStandalone, isStandalone).
		Str(xglog.FieldOS, string(os)).
		Str(xglog.FieldPhase, string(g.resolver.Current())).
		Msg("page mounted")
	return g, nil
}

func (s *Service) run(ctx context.Context, g *Gate) {
	defer close(g.done)
	s.client.Initialize(ctx)
	g.markInitDone()
	push.NewPoller(s.client, s.cfg.PollInterval).Run(ctx)
}

// Lookup returns a live mount.
func (s *Service) Lookup(id string) (*Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.mounts[id]
	if !ok {
		return nil, ErrUnknownMount
	}
	return g, nil
}

// Touch marks a mount as active and returns it.
func (s *Service) Touch(id string) (*Gate, error) {
	g, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	g.touch(s.now())
	return g, nil
}

// Unmount releases a mount and waits for its background work to stop.
func (s *Service) Unmount(id string) error {
	return s.unmount(id, reasonExplicit)
}

func (s *Service) unmount(id, reason string) error {
	s.mu.Lock()
	g, ok := s.mounts[id]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownMount
	}
	delete(s.mounts, id)
	active := len(s.mounts)
	s.mu.Unlock()

	g.stop()
	metrics.IncUnmount(reason)
	metrics.SetMountsActive(active)
	s.logger.Debug().
		Str(xglog.FieldEvent, "gate.unmounted").
		Str(xglog.FieldMountID, id).
		Str("reason", reason).
		Msg("page unmounted")
	return nil
}

// Sweep unmounts pages idle for longer than MountTTL and returns how many
// were released.
func (s *Service) Sweep(now time.Time) int {
	s.mu.Lock()
	var stale []string
	for id, g := range s.mounts {
		if now.Sub(g.LastSeen()) > s.cfg.MountTTL {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range stale {
		if s.unmount(id, reasonIdle) == nil {
			n++
		}
	}
	return n
}

// Run sweeps idle mounts until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	interval := s.cfg.MountTTL / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Info().Str(xglog.FieldEvent, "gate.sweep").Int("released", n).Msg("released idle mounts")
			}
		}
	}
}

// Len returns the number of live mounts.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mounts)
}

// RequestPermission records the permission the page read from the browser
// and runs the push client's permission flow for a standalone mount.
func (s *Service) RequestPermission(ctx context.Context, id string, reported platform.PermissionState) (push.Outcome, error) {
	g, err := s.Touch(id)
	if err != nil {
		return "", err
	}
	if !g.standalone {
		return "", ErrNotStandalone
	}
	s.permission.Report(reported)
	ctx = xglog.ContextWithMountID(ctx, id)
	return s.client.RequestPermission(ctx), nil
}

// Close unmounts every page. Mount fails afterwards.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ids := make([]string, 0, len(s.mounts))
	for id := range s.mounts {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	s.cancel()
	for _, id := range ids {
		_ = s.unmount(id, reasonShutdown)
	}
}
