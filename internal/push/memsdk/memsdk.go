// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package memsdk is an in-memory push provider used for local development
// (push.provider: simulated) and for tests that exercise the full gate.
package memsdk

import (
	"context"
	"errors"
	"sync"

	"github.com/ManuGH/freesession/internal/push"
)

// ErrNotInitialized is returned by calls made before Init.
var ErrNotInitialized = errors.New("memsdk: not initialized")

// SDK simulates a push provider.
type SDK struct {
	mu          sync.Mutex
	appID       string
	opts        push.Options
	initialized bool
	readyAfter  int
	readyPolls  int
	subscribed  bool
	initCalls   int
	queryCalls  int
	regCalls    int
	initErr     error
	queryErr    error
	registerErr error
}

// Option configures the simulated provider.
type Option func(*SDK)

// WithReadyAfter makes Ready report false for the first n polls.
func WithReadyAfter(n int) Option { return func(s *SDK) { s.readyAfter = n } }

// WithSubscribed seeds the subscription.
func WithSubscribed(v bool) Option { return func(s *SDK) { s.subscribed = v } }

// WithInitError makes every Init call fail with err.
func WithInitError(err error) Option { return func(s *SDK) { s.initErr = err } }

// New returns a simulated provider that becomes ready on the first poll.
func New(opts ...Option) *SDK {
	s := &SDK{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ push.SDK = (*SDK)(nil)

// Init implements push.SDK.
func (s *SDK) Init(ctx context.Context, appID string, opts push.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.initErr != nil {
		return s.initErr
	}
	s.appID = appID
	s.opts = opts
	s.initialized = true
	return nil
}

// Ready implements push.SDK.
func (s *SDK) Ready(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return false
	}
	s.readyPolls++
	return s.readyPolls > s.readyAfter
}

// IsPushNotificationsEnabled implements push.SDK.
func (s *SDK) IsPushNotificationsEnabled(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryCalls++
	if !s.initialized {
		return false, ErrNotInitialized
	}
	if s.queryErr != nil {
		return false, s.queryErr
	}
	return s.subscribed, nil
}

// RegisterForPushNotifications implements push.SDK.
func (s *SDK) RegisterForPushNotifications(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regCalls++
	if !s.initialized {
		return ErrNotInitialized
	}
	if s.registerErr != nil {
		return s.registerErr
	}
	s.subscribed = true
	return nil
}

// Revoke simulates the user disabling notifications at the OS level.
func (s *SDK) Revoke() {
	s.mu.Lock()
	s.subscribed = false
	s.mu.Unlock()
}

// SetQueryError makes status queries fail until cleared with nil.
func (s *SDK) SetQueryError(err error) {
	s.mu.Lock()
	s.queryErr = err
	s.mu.Unlock()
}

// SetRegisterError makes registration fail until cleared with nil.
func (s *SDK) SetRegisterError(err error) {
	s.mu.Lock()
	s.registerErr = err
	s.mu.Unlock()
}

// Options returns the options passed to the last successful Init.
func (s *SDK) Options() push.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// AppID returns the app ID passed to the last successful Init.
func (s *SDK) AppID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID
}

// InitCalls returns how many times Init ran.
func (s *SDK) InitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls
}

// QueryCalls returns how many status queries ran.
func (s *SDK) QueryCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryCalls
}

// RegisterCalls returns how many registrations ran.
func (s *SDK) RegisterCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regCalls
}
