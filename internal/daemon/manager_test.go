// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/freesession/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testDeps(apiAddr string) Deps {
	cfg := config.Defaults()
	cfg.APIListenAddr = apiAddr
	cfg.MetricsListenAddr = ""
	return Deps{
		Logger: zerolog.New(os.Stderr).Level(zerolog.WarnLevel),
		Config: cfg,
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	}
}

func testServerConfig() ServerConfig {
	return DefaultServerConfig(2 * time.Second)
}

func TestDeps_Validate(t *testing.T) {
	d := testDeps("127.0.0.1:0")
	require.NoError(t, d.Validate())

	d.APIHandler = nil
	assert.ErrorIs(t, d.Validate(), ErrMissingAPIHandler)

	d = testDeps("127.0.0.1:0")
	d.Logger = zerolog.Nop()
	assert.ErrorIs(t, d.Validate(), ErrMissingLogger)

	_, err := NewManager(testServerConfig(), d)
	assert.ErrorIs(t, err, ErrMissingLogger)
}

func TestManager_StartAndCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewManager(testServerConfig(), testDeps("127.0.0.1:0"))
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"telemetry", "push", "gates"} {
		m.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, []string{"gates", "push", "telemetry"}, order)

	// A second shutdown is a no-op.
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ServerErrorTriggersShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	m, err := NewManager(testServerConfig(), testDeps(ln.Addr().String()))
	require.NoError(t, err)

	hookRan := false
	m.RegisterShutdownHook("gates", func(context.Context) error {
		hookRan = true
		return nil
	})

	err = m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API server")
	assert.True(t, hookRan)
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	m, err := NewManager(testServerConfig(), testDeps("127.0.0.1:0"))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)

	boom := errors.New("boom")
	m.RegisterShutdownHook("push", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Start(ctx)
	assert.ErrorIs(t, err, boom)
}

type countingWorker struct {
	mu      sync.Mutex
	started bool
	stopped bool
}

func (w *countingWorker) Run(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	<-ctx.Done()
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

func TestApp_RunStopsWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewManager(testServerConfig(), testDeps("127.0.0.1:0"))
	require.NoError(t, err)

	app := NewApp(zerolog.Nop(), m)
	w := &countingWorker{}
	app.AddWorker("janitor", w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.started
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, w.stopped)
}

func TestApp_MissingManager(t *testing.T) {
	assert.ErrorIs(t, NewApp(zerolog.Nop(), nil).Run(context.Background()), ErrMissingManager)
}
