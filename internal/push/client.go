// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/metrics"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/subscription"
	"github.com/ManuGH/freesession/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSettleDelay absorbs the provider's handshake after registration.
	DefaultSettleDelay = 500 * time.Millisecond

	initKey = "initialize"
)

// Config controls initialization retries and provider call bounds.
type Config struct {
	AppID         string
	Options       Options
	InitRetries   int           // top-level retries, each re-running setup and the readiness wait
	ReadyAttempts int           // readiness polls per retry
	ReadyInterval time.Duration // delay between readiness polls
	QueryTimeout  time.Duration // bound on a single provider call
}

// DefaultConfig returns the production retry bounds: 3 retries of up to
// 10 readiness polls one second apart.
func DefaultConfig() Config {
	return Config{
		Options:       DefaultOptions(),
		InitRetries:   3,
		ReadyAttempts: 10,
		ReadyInterval: time.Second,
		QueryTimeout:  5 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.InitRetries <= 0 {
		c.InitRetries = def.InitRetries
	}
	if c.ReadyAttempts <= 0 {
		c.ReadyAttempts = def.ReadyAttempts
	}
	if c.ReadyInterval <= 0 {
		c.ReadyInterval = def.ReadyInterval
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = def.QueryTimeout
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// EventListener receives lifecycle events.
type EventListener func(Event)

type eventRegistration struct {
	fn EventListener
}

// Client is the process-wide push capability service. Construct one and pass
// it to every consumer; Initialize is safe to call from all of them.
type Client struct {
	cfg         Config
	sdk         SDK
	permission  platform.Permission
	broadcaster *subscription.Broadcaster
	logger      zerolog.Logger
	sleep       Sleeper
	settleDelay time.Duration

	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     InitState
	closed    bool
	listeners []*eventRegistration
}

// Option customises a Client.
type Option func(*Client)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleeper replaces the timer-based wait used between retries and after
// registration.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Client) { c.settleDelay = d }
}

// NewClient builds the push client. Status results are published to b.
func NewClient(cfg Config, sdk SDK, permission platform.Permission, b *subscription.Broadcaster, opts ...Option) *Client {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:         cfg,
		sdk:         sdk,
		permission:  permission,
		broadcaster: b,
		logger:      xglog.WithComponent("push"),
		sleep:       sleepContext,
		settleDelay: DefaultSettleDelay,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateNotStarted,
	}
	for _, opt := range opts {
		opt(c)
	}
	metrics.SetPushInitState(string(StateNotStarted))
	return c
}

// State returns the current initialization state.
func (c *Client) State() InitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Broadcaster returns the status store this client publishes into.
func (c *Client) Broadcaster() *subscription.Broadcaster { return c.broadcaster }

// OnEvent registers a lifecycle listener and returns its removal function.
func (c *Client) OnEvent(l EventListener) (unsubscribe func()) {
	reg := &eventRegistration{fn: l}
	c.mu.Lock()
	c.listeners = append(c.listeners, reg)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, r := range c.listeners {
			if r == reg {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Initialize brings the SDK up once per process. A ready client returns
// immediately, a caller arriving while an attempt runs joins that attempt,
// and a client that failed earlier starts a fresh attempt. The attempt itself
// is bound to the client's lifetime, not to ctx: ctx only bounds how long
// this caller waits. Returns whether the client is ready.
func (c *Client) Initialize(ctx context.Context) bool {
	if c.State() == StateReady {
		return true
	}

	ch := c.group.DoChan(initKey, func() (any, error) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false, nil
		}
		if c.state == StateReady {
			c.mu.Unlock()
			return true, nil
		}
		c.wg.Add(1)
		c.mu.Unlock()
		defer c.wg.Done()
		return c.initialize(c.ctx), nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

func (c *Client) initialize(ctx context.Context) bool {
	logger := c.logger.With().Str(xglog.FieldAppID, c.cfg.AppID).Logger()
	ctx, span := telemetry.Tracer().Start(ctx, "push.initialize",
		trace.WithAttributes(telemetry.PushAttributes(c.cfg.AppID, string(c.State()))...))
	defer span.End()

	if c.cfg.AppID == "" {
		span.SetStatus(codes.Error, ErrMissingAppID.Error())
		logger.Warn().
			Err(ErrMissingAppID).
			Str(xglog.FieldEvent, "push.init.skipped").
			Msg("push provider app id missing, continuing without push")
		c.setState(StateFailed)
		c.emit(EventReady)
		return false
	}

	c.setState(StateInitializing)
	logger.Info().Str(xglog.FieldEvent, "push.init.start").Msg("initializing push sdk")

	for attempt := 1; attempt <= c.cfg.InitRetries; attempt++ {
		if c.attempt(ctx, logger, attempt) {
			span.SetAttributes(attribute.Int(telemetry.PushAttemptKey, attempt))
			c.setState(StateReady)
			logger.Info().
				Str(xglog.FieldEvent, "push.init.ready").
				Int(xglog.FieldAttempt, attempt).
				Msg("push sdk ready")
			c.emit(EventInitialized)
			c.Refresh(ctx)
			c.emit(EventReady)
			return true
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < c.cfg.InitRetries {
			if err := c.sleep(ctx, c.cfg.ReadyInterval); err != nil {
				break
			}
		}
	}

	c.setState(StateFailed)
	span.SetStatus(codes.Error, ErrNotReady.Error())
	logger.Error().
		Err(ErrNotReady).
		Str(xglog.FieldEvent, "push.init.failed").
		Int("retries", c.cfg.InitRetries).
		Msg("push sdk initialization exhausted retries, proceeding without push")
	c.emit(EventReady)
	return false
}

// attempt runs one setup call followed by the bounded readiness wait.
func (c *Client) attempt(ctx context.Context, logger zerolog.Logger, attempt int) bool {
	metrics.IncPushSDKSetup()
	setupErr := c.guard(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
		return c.sdk.Init(callCtx, c.cfg.AppID, c.cfg.Options)
	})
	if setupErr != nil {
		metrics.IncPushInitAttempt("setup_error")
		trace.SpanFromContext(ctx).AddEvent("push.setup_failed", trace.WithAttributes(
			append(telemetry.ErrorAttributes("setup_error"), attribute.Int(telemetry.PushAttemptKey, attempt))...))
		logger.Warn().
			Err(setupErr).
			Str(xglog.FieldEvent, "push.init.setup_error").
			Int(xglog.FieldAttempt, attempt).
			Msg("push sdk setup failed")
		return false
	}

	for poll := 1; poll <= c.cfg.ReadyAttempts; poll++ {
		ready := false
		_ = c.guard(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
			defer cancel()
			ready = c.sdk.Ready(callCtx)
			return nil
		})
		if ready {
			metrics.IncPushInitAttempt("ready")
			return true
		}
		if poll == c.cfg.ReadyAttempts {
			break
		}
		if err := c.sleep(ctx, c.cfg.ReadyInterval); err != nil {
			metrics.IncPushInitAttempt("canceled")
			return false
		}
	}

	metrics.IncPushInitAttempt("not_ready")
	trace.SpanFromContext(ctx).AddEvent("push.not_ready", trace.WithAttributes(
		append(telemetry.ErrorAttributes("not_ready"), attribute.Int(telemetry.PushAttemptKey, attempt))...))
	logger.Warn().
		Str(xglog.FieldEvent, "push.init.not_ready").
		Int(xglog.FieldAttempt, attempt).
		Int("polls", c.cfg.ReadyAttempts).
		Msg("push sdk did not report a live instance")
	return false
}

// IsSubscribed asks the provider for the current subscription. Any failure
// reads as not subscribed.
func (c *Client) IsSubscribed(ctx context.Context) bool {
	subscribed, _ := c.query(ctx)
	return subscribed
}

// query is IsSubscribed that also reports whether the answer is conclusive.
// A query cut short by the caller's context says nothing about the
// subscription and is not conclusive.
func (c *Client) query(ctx context.Context) (subscribed, conclusive bool) {
	err := c.guard(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
		v, err := c.sdk.IsPushNotificationsEnabled(callCtx)
		subscribed = v
		return err
	})
	switch {
	case err != nil && ctx.Err() != nil:
		metrics.IncStatusQuery("cancelled")
		c.logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "push.status.cancelled").
			Msg("subscription status query abandoned by caller")
		return false, false
	case err != nil:
		metrics.IncStatusQuery("error")
		c.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "push.status.error").
			Msg("subscription status query failed, treating as not subscribed")
		return false, true
	case subscribed:
		metrics.IncStatusQuery("subscribed")
	default:
		metrics.IncStatusQuery("not_subscribed")
	}
	return subscribed, true
}

// Refresh queries the subscription and publishes the result. When the caller
// cancels mid-query nothing is published and the last known value is
// returned, so one page going away cannot relock every other page.
func (c *Client) Refresh(ctx context.Context) bool {
	subscribed, ok := c.refresh(ctx)
	if !ok {
		return c.broadcaster.Current().Bool()
	}
	return subscribed
}

func (c *Client) refresh(ctx context.Context) (subscribed, conclusive bool) {
	subscribed, conclusive = c.query(ctx)
	if conclusive {
		c.broadcaster.Update(subscribed)
	}
	return subscribed, conclusive
}

// RequestPermissionAndRegister prompts for notification permission when the
// user has not decided yet, registers with the provider and reports whether
// the user ended up subscribed.
func (c *Client) RequestPermissionAndRegister(ctx context.Context) bool {
	return c.RequestPermission(ctx).Granted()
}

// RequestPermission is RequestPermissionAndRegister with the reason attached.
func (c *Client) RequestPermission(ctx context.Context) (outcome Outcome) {
	logger := xglog.WithContext(ctx, c.logger)
	ctx, span := telemetry.Tracer().Start(ctx, "push.request_permission",
		trace.WithAttributes(telemetry.PushAttributes(c.cfg.AppID, string(c.State()))...))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Str(xglog.FieldEvent, "push.permission.panic").
				Interface("panic_value", rec).
				Msg("permission request panicked")
			outcome = OutcomeFailed
		}
		span.SetAttributes(attribute.String(telemetry.PushOutcomeKey, string(outcome)))
		if outcome == OutcomeFailed {
			span.SetStatus(codes.Error, "permission request failed")
		}
		span.End()
		metrics.IncPermissionOutcome(string(outcome))
		ev := logger.Info()
		if outcome == OutcomeCancelled {
			ev = logger.Debug()
		}
		ev.Str(xglog.FieldEvent, "push.permission.done").
			Str(xglog.FieldOutcome, string(outcome)).
			Msg("permission request finished")
	}()

	state := c.permission.State()
	if state == platform.PermissionDefault {
		requested, err := c.permission.Request(ctx)
		if err != nil && ctx.Err() != nil {
			return OutcomeCancelled
		}
		if err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "push.permission.prompt_error").Msg("native permission prompt failed")
			return OutcomeFailed
		}
		state = requested
	}
	if state != platform.PermissionGranted {
		return OutcomeDenied
	}

	if c.State() != StateReady {
		logger.Warn().
			Str(xglog.FieldEvent, "push.permission.unavailable").
			Str("init_state", string(c.State())).
			Msg("push sdk not ready, cannot register")
		return OutcomeUnavailable
	}

	if err := c.guard(func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		defer cancel()
		return c.sdk.RegisterForPushNotifications(callCtx)
	}); err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		logger.Warn().Err(err).Str(xglog.FieldEvent, "push.register.error").Msg("push registration failed")
		return OutcomeFailed
	}

	// Only cancellation interrupts the settle delay.
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return OutcomeCancelled
	}

	subscribed, conclusive := c.refresh(ctx)
	switch {
	case !conclusive:
		return OutcomeCancelled
	case !subscribed:
		return OutcomeNotSubscribed
	}
	return OutcomeGranted
}

// Close cancels an in-flight initialization and waits for it to return.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Client) setState(next InitState) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next {
		metrics.SetPushInitState(string(next))
		c.logger.Debug().
			Str(xglog.FieldOldState, string(prev)).
			Str(xglog.FieldNewState, string(next)).
			Msg("push init state changed")
	}
}

func (c *Client) emit(evt Event) {
	c.mu.Lock()
	snapshot := make([]*eventRegistration, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()
	for _, reg := range snapshot {
		reg.fn(evt)
	}
}

// guard converts a provider panic into an error.
func (c *Client) guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("push sdk panic: %v", rec)
		}
	}()
	return fn()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
