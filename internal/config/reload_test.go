// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "dev")
	cfg, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(cfg, loader)
	var got atomic.Value
	h.OnReload(func(c AppConfig) { got.Store(c.LogLevel) })

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nrewardUrl: https://reward.example/\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "debug", h.Get().LogLevel)
	assert.Equal(t, "https://reward.example/", h.Get().RewardURL)
	assert.Equal(t, "debug", got.Load())

	// An invalid file keeps the previous configuration.
	require.NoError(t, os.WriteFile(path, []byte("logLevel: loud\n"), 0o600))
	require.ErrorIs(t, h.Reload(context.Background()), ErrInvalidConfig)
	assert.Equal(t, "debug", h.Get().LogLevel)
}

func TestHolder_WatchesFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeConfig(t, "logLevel: info\n")
	loader := NewLoader(path, "dev")
	cfg, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(cfg, loader)
	reloaded := make(chan string, 1)
	h.OnReload(func(c AppConfig) {
		select {
		case reloaded <- c.LogLevel:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	// The watcher registers asynchronously; each attempt outlasts the
	// reload debounce.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("logLevel: warn\n"), 0o600)
		select {
		case level := <-reloaded:
			return level == "warn"
		case <-time.After(2 * reloadDebounce):
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, "warn", h.Get().LogLevel)
}

func TestHolder_RunWithoutFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHolder(Defaults(), NewLoader("", "dev"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
