// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package onesignal implements push.SDK against the OneSignal REST API.
//
// The browser-side OneSignal SDK owns the actual push subscription; it logs
// in with the same external ID this adapter is configured with, so the server
// can see whether that identity holds an enabled push subscription.
package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/freesession/internal/platform/httpx"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/resilience"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public OneSignal API endpoint.
const DefaultBaseURL = "https://api.onesignal.com"

const maxBodyBytes = 1 << 20

var (
	// ErrUnexpectedStatus wraps non-success responses.
	ErrUnexpectedStatus = errors.New("onesignal: unexpected status")
	// ErrNotInitialized is returned by calls made before Init.
	ErrNotInitialized = errors.New("onesignal: not initialized")
	// ErrMissingExternalID is returned when no identity is configured.
	ErrMissingExternalID = errors.New("onesignal: external id is required")
)

// pushSubscriptionTypes are the subscription types that deliver web or
// native push (email and SMS subscriptions are ignored).
var pushSubscriptionTypes = map[string]struct{}{
	"ChromePush":       {},
	"FirefoxPush":      {},
	"SafariPush":       {},
	"SafariLegacyPush": {},
	"iOSPush":          {},
	"AndroidPush":      {},
	"HuaweiPush":       {},
}

// Config configures the REST adapter.
type Config struct {
	BaseURL    string
	APIKey     string
	ExternalID string
	Timeout    time.Duration
	// RatePerSecond bounds outbound calls; polling from several pages
	// must not exceed the provider's rate limits.
	RatePerSecond float64
	Burst         int
	// BreakerThreshold consecutive transport errors or 5xx/429 responses
	// open the circuit for BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
	HTTPClient       *http.Client
}

// SDK is the OneSignal REST implementation of push.SDK.
type SDK struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker

	mu    sync.RWMutex
	appID string
	opts  push.Options
}

var _ push.SDK = (*SDK)(nil)

// New returns a REST adapter.
func New(cfg Config) *SDK {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpx.NewTracedClient(cfg.Timeout, "onesignal")
	}
	return &SDK{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: resilience.NewCircuitBreaker("onesignal", cfg.BreakerThreshold, cfg.BreakerReset),
	}
}

// Init records the application and options. Browser-only options have no
// REST counterpart and are kept for diagnostics.
func (s *SDK) Init(ctx context.Context, appID string, opts push.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if appID == "" {
		return push.ErrMissingAppID
	}
	if s.cfg.ExternalID == "" {
		return ErrMissingExternalID
	}
	s.mu.Lock()
	s.appID = appID
	s.opts = opts
	s.mu.Unlock()
	return nil
}

// Ready reports whether the app is reachable with the configured key.
func (s *SDK) Ready(ctx context.Context) bool {
	appID, err := s.app()
	if err != nil {
		return false
	}
	status, _, err := s.do(ctx, http.MethodGet, "/apps/"+url.PathEscape(appID), nil)
	return err == nil && status == http.StatusOK
}

type userResponse struct {
	Subscriptions []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Enabled bool   `json:"enabled"`
	} `json:"subscriptions"`
}

// IsPushNotificationsEnabled reports whether the external ID holds at least
// one enabled push subscription. An unknown user is not subscribed.
func (s *SDK) IsPushNotificationsEnabled(ctx context.Context) (bool, error) {
	appID, err := s.app()
	if err != nil {
		return false, err
	}
	path := fmt.Sprintf("/apps/%s/users/by/external_id/%s", url.PathEscape(appID), url.PathEscape(s.cfg.ExternalID))
	status, body, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return false, fmt.Errorf("onesignal: decode user: %w", err)
	}
	for _, sub := range user.Subscriptions {
		if _, ok := pushSubscriptionTypes[sub.Type]; ok && sub.Enabled {
			return true, nil
		}
	}
	return false, nil
}

type createUserRequest struct {
	Identity struct {
		ExternalID string `json:"external_id"`
	} `json:"identity"`
}

// RegisterForPushNotifications makes sure the external ID exists so the
// browser subscription can attach to it. An existing user is not an error.
func (s *SDK) RegisterForPushNotifications(ctx context.Context) error {
	appID, err := s.app()
	if err != nil {
		return err
	}
	var req createUserRequest
	req.Identity.ExternalID = s.cfg.ExternalID
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("onesignal: encode user: %w", err)
	}

	status, _, err := s.do(ctx, http.MethodPost, "/apps/"+url.PathEscape(appID)+"/users", payload)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
}

// Options returns the options recorded by Init.
func (s *SDK) Options() push.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

func (s *SDK) app() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.appID == "" {
		return "", ErrNotInitialized
	}
	return s.appID, nil
}

func (s *SDK) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("onesignal: rate limit wait: %w", err)
	}

	var (
		status int
		data   []byte
		reqErr error
	)
	err := s.breaker.Execute(func() error {
		status, data, reqErr = s.roundTrip(ctx, method, path, payload)
		switch {
		case reqErr != nil && ctx.Err() != nil:
			// The caller gave up; that says nothing about the provider.
			return nil
		case reqErr != nil:
			return reqErr
		case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
			reqErr = fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
			return reqErr
		}
		return nil
	})
	if err != nil {
		return status, nil, err
	}
	return status, data, reqErr
}

func (s *SDK) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("onesignal: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Key "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("onesignal: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("onesignal: read body: %w", err)
	}
	return resp.StatusCode, data, nil
}
