// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/subscription"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSDK struct {
	mu sync.Mutex

	initCalls     int
	readyCalls    int
	queryCalls    int
	registerCalls int

	initErr     error
	readyAfter  int // Ready is true once readyCalls > readyAfter; negative never
	subscribed  bool
	queryErr    error
	registerErr error
	registerSub bool // registration flips subscribed to true
	panicOnReg  bool

	initEntered chan struct{}
	initGate    chan struct{}
	lastOpts    Options
}

func (f *fakeSDK) Init(ctx context.Context, _ string, opts Options) error {
	f.mu.Lock()
	f.initCalls++
	f.lastOpts = opts
	entered, gate := f.initEntered, f.initGate
	err := f.initErr
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeSDK) Ready(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readyCalls++
	return f.readyAfter >= 0 && f.readyCalls > f.readyAfter
}

func (f *fakeSDK) IsPushNotificationsEnabled(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.subscribed, f.queryErr
}

func (f *fakeSDK) RegisterForPushNotifications(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	if f.panicOnReg {
		panic("sdk exploded")
	}
	if f.registerErr != nil {
		return f.registerErr
	}
	if f.registerSub {
		f.subscribed = true
	}
	return nil
}

func (f *fakeSDK) counts() (initCalls, readyCalls, queryCalls, registerCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.readyCalls, f.queryCalls, f.registerCalls
}

type fakePermission struct {
	mu         sync.Mutex
	state      platform.PermissionState
	answer     platform.PermissionState
	requestErr error
	requests   int
}

func (p *fakePermission) State() platform.PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePermission) Request(context.Context) (platform.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.requestErr != nil {
		return platform.PermissionDefault, p.requestErr
	}
	p.state = p.answer
	return p.answer, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func newTestClient(t *testing.T, sdk SDK, perm platform.Permission, mutate func(*Config)) (*Client, *subscription.Broadcaster, *sleepRecorder) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AppID = "app-123"
	if mutate != nil {
		mutate(&cfg)
	}
	if perm == nil {
		perm = &fakePermission{state: platform.PermissionDefault, answer: platform.PermissionGranted}
	}
	b := subscription.NewBroadcaster()
	sleeper := &sleepRecorder{}
	c := NewClient(cfg, sdk, perm, b,
		WithLogger(zerolog.Nop()),
		WithSleeper(sleeper.sleep),
		WithSettleDelay(750*time.Millisecond),
	)
	t.Cleanup(c.Close)
	return c, b, sleeper
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func TestInitialize_ReadyPublishesInitialStatus(t *testing.T) {
	sdk := &fakeSDK{readyAfter: 2, subscribed: true}
	c, b, sleeper := newTestClient(t, sdk, nil, nil)
	events := &eventLog{}
	c.OnEvent(events.record)

	require.True(t, c.Initialize(context.Background()))

	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, subscription.Subscribed, b.Current())
	assert.Equal(t, []Event{EventInitialized, EventReady}, events.all())
	assert.Equal(t, DefaultOptions(), sdk.lastOpts)

	initCalls, readyCalls, queryCalls, _ := sdk.counts()
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, 3, readyCalls)
	assert.Equal(t, 1, queryCalls)
	assert.Equal(t, 2, sleeper.count(), "one wait between each readiness poll")
}

func TestInitialize_IdempotentOnceReady(t *testing.T) {
	sdk := &fakeSDK{}
	c, _, _ := newTestClient(t, sdk, nil, nil)

	require.True(t, c.Initialize(context.Background()))
	require.True(t, c.Initialize(context.Background()))

	initCalls, _, _, _ := sdk.counts()
	assert.Equal(t, 1, initCalls)
}

func TestInitialize_ConcurrentCallersShareOneSetup(t *testing.T) {
	sdk := &fakeSDK{
		initEntered: make(chan struct{}, 1),
		initGate:    make(chan struct{}),
	}
	c, _, _ := newTestClient(t, sdk, nil, nil)

	results := make(chan bool, 2)
	go func() { results <- c.Initialize(context.Background()) }()

	select {
	case <-sdk.initEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("first initialize never reached the sdk")
	}
	assert.Equal(t, StateInitializing, c.State())

	go func() { results <- c.Initialize(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	close(sdk.initGate)

	for i := 0; i < 2; i++ {
		select {
		case ok := <-results:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("initialize did not return")
		}
	}

	initCalls, _, _, _ := sdk.counts()
	assert.Equal(t, 1, initCalls, "concurrent initialize must not double-initialize the sdk")
}

func TestInitialize_ExhaustedRetriesStillEmitsReady(t *testing.T) {
	sdk := &fakeSDK{readyAfter: -1}
	c, b, _ := newTestClient(t, sdk, nil, nil)
	events := &eventLog{}
	c.OnEvent(events.record)

	assert.False(t, c.Initialize(context.Background()))

	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, []Event{EventReady}, events.all())
	assert.Equal(t, subscription.Unknown, b.Current(), "no status query after a failed init")

	initCalls, readyCalls, queryCalls, _ := sdk.counts()
	assert.Equal(t, 3, initCalls)
	assert.Equal(t, 30, readyCalls)
	assert.Zero(t, queryCalls)
}

func TestInitialize_SetupErrorsAreRetried(t *testing.T) {
	sdk := &fakeSDK{initErr: errors.New("script blocked")}
	c, _, _ := newTestClient(t, sdk, nil, func(cfg *Config) { cfg.InitRetries = 2 })

	assert.False(t, c.Initialize(context.Background()))

	initCalls, readyCalls, _, _ := sdk.counts()
	assert.Equal(t, 2, initCalls)
	assert.Zero(t, readyCalls)
}

func TestInitialize_FailedClientCanRetryLater(t *testing.T) {
	sdk := &fakeSDK{readyAfter: -1}
	c, _, _ := newTestClient(t, sdk, nil, func(cfg *Config) {
		cfg.InitRetries = 1
		cfg.ReadyAttempts = 1
	})
	require.False(t, c.Initialize(context.Background()))

	sdk.mu.Lock()
	sdk.readyAfter = 0
	sdk.mu.Unlock()

	assert.True(t, c.Initialize(context.Background()))
	assert.Equal(t, StateReady, c.State())
}

func TestInitialize_MissingAppIDSoftFails(t *testing.T) {
	sdk := &fakeSDK{}
	c, _, _ := newTestClient(t, sdk, nil, func(cfg *Config) { cfg.AppID = "" })
	events := &eventLog{}
	c.OnEvent(events.record)

	assert.False(t, c.Initialize(context.Background()))
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, []Event{EventReady}, events.all())

	initCalls, _, _, _ := sdk.counts()
	assert.Zero(t, initCalls)
}

func TestInitialize_CallerCancelDoesNotAbortAttempt(t *testing.T) {
	sdk := &fakeSDK{initEntered: make(chan struct{}, 1), initGate: make(chan struct{})}
	c, _, _ := newTestClient(t, sdk, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { done <- c.Initialize(ctx) }()
	<-sdk.initEntered
	cancel()
	assert.False(t, <-done)

	close(sdk.initGate)
	require.True(t, c.Initialize(context.Background()))
	initCalls, _, _, _ := sdk.counts()
	assert.Equal(t, 1, initCalls)
}

func TestClose_AbortsInFlightInitialize(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sdk := &fakeSDK{initEntered: make(chan struct{}, 1), initGate: make(chan struct{})}
	b := subscription.NewBroadcaster()
	c := NewClient(Config{AppID: "app"}, sdk, &fakePermission{}, b, WithLogger(zerolog.Nop()))

	done := make(chan bool, 1)
	go func() { done <- c.Initialize(context.Background()) }()
	<-sdk.initEntered

	c.Close()
	assert.False(t, <-done)
	assert.Equal(t, StateFailed, c.State())
}

func TestIsSubscribed_SoftFails(t *testing.T) {
	sdk := &fakeSDK{subscribed: true, queryErr: errors.New("network down")}
	c, _, _ := newTestClient(t, sdk, nil, nil)

	assert.False(t, c.IsSubscribed(context.Background()))
}

func TestRefresh_PublishesFalseOnQueryError(t *testing.T) {
	sdk := &fakeSDK{subscribed: true}
	c, b, _ := newTestClient(t, sdk, nil, nil)
	require.True(t, c.Initialize(context.Background()))
	require.Equal(t, subscription.Subscribed, b.Current())

	sdk.mu.Lock()
	sdk.queryErr = errors.New("timeout")
	sdk.mu.Unlock()

	assert.False(t, c.Refresh(context.Background()))
	assert.Equal(t, subscription.NotSubscribed, b.Current())
}

func TestRefresh_CancelledCallerKeepsPublishedStatus(t *testing.T) {
	sdk := &fakeSDK{subscribed: true}
	c, b, _ := newTestClient(t, sdk, nil, nil)
	require.True(t, c.Initialize(context.Background()))
	require.Equal(t, subscription.Subscribed, b.Current())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, c.Refresh(ctx), "last known value")
	assert.Equal(t, subscription.Subscribed, b.Current())
	assert.False(t, c.IsSubscribed(ctx))

	// A conclusive answer still goes through.
	sdk.mu.Lock()
	sdk.subscribed = false
	sdk.mu.Unlock()
	assert.False(t, c.Refresh(context.Background()))
	assert.Equal(t, subscription.NotSubscribed, b.Current())
}

func TestRequestPermission_CancelledCaller(t *testing.T) {
	t.Run("during settle delay", func(t *testing.T) {
		sdk := &fakeSDK{subscribed: true}
		c, b, sleeper := newTestClient(t, sdk, &fakePermission{state: platform.PermissionGranted}, nil)
		require.True(t, c.Initialize(context.Background()))
		require.Equal(t, subscription.Subscribed, b.Current())

		ctx, cancel := context.WithCancel(context.Background())
		c.sleep = func(context.Context, time.Duration) error {
			cancel()
			return sleeper.sleep(ctx, 0)
		}

		got := c.RequestPermission(ctx)
		assert.Equal(t, OutcomeCancelled, got)
		assert.False(t, got.Granted())
		assert.Equal(t, subscription.Subscribed, b.Current(), "other pages keep their status")
		_, _, _, registerCalls := sdk.counts()
		assert.Equal(t, 1, registerCalls)
	})

	t.Run("before the native prompt answers", func(t *testing.T) {
		sdk := &fakeSDK{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		perm := &fakePermission{state: platform.PermissionDefault, requestErr: context.Canceled}
		c, _, _ := newTestClient(t, sdk, perm, nil)
		require.True(t, c.Initialize(context.Background()))

		assert.Equal(t, OutcomeCancelled, c.RequestPermission(ctx))
		_, _, _, registerCalls := sdk.counts()
		assert.Zero(t, registerCalls)
	})
}

func TestRequestPermission(t *testing.T) {
	tests := []struct {
		name         string
		sdk          *fakeSDK
		perm         *fakePermission
		initialize   bool
		want         Outcome
		wantPrompts  int
		wantRegister int
		wantStatus   subscription.Status
	}{
		{
			name:         "undecided then granted",
			sdk:          &fakeSDK{registerSub: true},
			perm:         &fakePermission{state: platform.PermissionDefault, answer: platform.PermissionGranted},
			initialize:   true,
			want:         OutcomeGranted,
			wantPrompts:  1,
			wantRegister: 1,
			wantStatus:   subscription.Subscribed,
		},
		{
			name:         "undecided then denied skips sdk",
			sdk:          &fakeSDK{registerSub: true},
			perm:         &fakePermission{state: platform.PermissionDefault, answer: platform.PermissionDenied},
			initialize:   true,
			want:         OutcomeDenied,
			wantPrompts:  1,
			wantRegister: 0,
			wantStatus:   subscription.NotSubscribed,
		},
		{
			name:         "already denied is not re-prompted",
			sdk:          &fakeSDK{registerSub: true},
			perm:         &fakePermission{state: platform.PermissionDenied},
			initialize:   true,
			want:         OutcomeDenied,
			wantPrompts:  0,
			wantRegister: 0,
			wantStatus:   subscription.NotSubscribed,
		},
		{
			name:         "already granted registers without prompt",
			sdk:          &fakeSDK{registerSub: true},
			perm:         &fakePermission{state: platform.PermissionGranted},
			initialize:   true,
			want:         OutcomeGranted,
			wantPrompts:  0,
			wantRegister: 1,
			wantStatus:   subscription.Subscribed,
		},
		{
			name:         "registration does not stick",
			sdk:          &fakeSDK{},
			perm:         &fakePermission{state: platform.PermissionGranted},
			initialize:   true,
			want:         OutcomeNotSubscribed,
			wantRegister: 1,
			wantStatus:   subscription.NotSubscribed,
		},
		{
			name:         "registration error",
			sdk:          &fakeSDK{registerErr: errors.New("403")},
			perm:         &fakePermission{state: platform.PermissionGranted},
			initialize:   true,
			want:         OutcomeFailed,
			wantRegister: 1,
			wantStatus:   subscription.NotSubscribed,
		},
		{
			name:         "sdk panic is contained",
			sdk:          &fakeSDK{panicOnReg: true},
			perm:         &fakePermission{state: platform.PermissionGranted},
			initialize:   true,
			want:         OutcomeFailed,
			wantRegister: 1,
			wantStatus:   subscription.NotSubscribed,
		},
		{
			name:        "prompt error",
			sdk:         &fakeSDK{},
			perm:        &fakePermission{state: platform.PermissionDefault, requestErr: errors.New("no gesture")},
			initialize:  true,
			want:        OutcomeFailed,
			wantPrompts: 1,
			wantStatus:  subscription.NotSubscribed,
		},
		{
			name:       "sdk never initialized",
			sdk:        &fakeSDK{registerSub: true},
			perm:       &fakePermission{state: platform.PermissionGranted},
			want:       OutcomeUnavailable,
			wantStatus: subscription.Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b, sleeper := newTestClient(t, tt.sdk, tt.perm, nil)
			if tt.initialize {
				require.True(t, c.Initialize(context.Background()))
			}
			waitsBefore := sleeper.count()

			got := c.RequestPermission(context.Background())

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == OutcomeGranted, got.Granted())
			assert.Equal(t, tt.wantPrompts, tt.perm.requests)
			_, _, _, registerCalls := tt.sdk.counts()
			assert.Equal(t, tt.wantRegister, registerCalls)
			assert.Equal(t, tt.wantStatus, b.Current())
			if tt.want == OutcomeGranted || tt.want == OutcomeNotSubscribed {
				sleeper.mu.Lock()
				assert.Equal(t, 750*time.Millisecond, sleeper.waits[waitsBefore], "settle delay before re-check")
				sleeper.mu.Unlock()
			}
		})
	}
}

func TestRequestPermissionAndRegister_ReturnsBool(t *testing.T) {
	sdk := &fakeSDK{registerSub: true}
	c, b, _ := newTestClient(t, sdk, &fakePermission{state: platform.PermissionGranted}, nil)
	require.True(t, c.Initialize(context.Background()))
	require.Equal(t, subscription.NotSubscribed, b.Current())

	assert.True(t, c.RequestPermissionAndRegister(context.Background()))
	assert.Equal(t, subscription.Subscribed, b.Current())
}

func TestOnEvent_Unsubscribe(t *testing.T) {
	sdk := &fakeSDK{}
	c, _, _ := newTestClient(t, sdk, nil, nil)
	events := &eventLog{}
	unsub := c.OnEvent(events.record)
	unsub()

	require.True(t, c.Initialize(context.Background()))
	assert.Empty(t, events.all())
}
