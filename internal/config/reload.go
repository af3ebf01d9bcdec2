// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/freesession/internal/log"
	xnet "github.com/ManuGH/freesession/internal/platform/net"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the active configuration and reloads it when the file changes.
// Only LogLevel and RewardURL take effect without a restart; listeners decide
// what to apply, and logChanges flags the rest.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []func(AppConfig)
}

// NewHolder wraps the configuration loaded at startup.
func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers fn to run after every successful reload.
func (h *Holder) OnReload(fn func(AppConfig)) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Reload loads and validates the configuration again. On failure the current
// configuration stays active.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)

	h.listenersMu.RLock()
	listeners := append([]func(AppConfig){}, h.listeners...)
	h.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(next)
	}

	h.logger.Info().
		Str(xglog.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// Run watches the config file until ctx is cancelled. Without a file it just
// waits, since environment variables cannot change under a running process.
func (h *Holder) Run(ctx context.Context) {
	path := h.loader.configPath
	if path == "" {
		h.logger.Info().
			Str(xglog.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		<-ctx.Done()
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("create watcher")
		<-ctx.Done()
		return
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors and config management replace the file
	// by rename, which drops a watch on the file itself.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("watch config directory")
		<-ctx.Done()
		return
	}

	h.logger.Info().
		Str(xglog.FieldEvent, "config.watcher_started").
		Str("path", path).
		Msg("watching config file for changes")

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.logger.Debug().
					Str(xglog.FieldEvent, "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")
				pending = time.After(reloadDebounce)
			}

		case <-pending:
			pending = nil
			_ = h.Reload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

func (h *Holder) logChanges(prev, next AppConfig) {
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("old", prev.LogLevel).Str("new", next.LogLevel).Msg("config changed: LogLevel")
	}
	if prev.RewardURL != next.RewardURL {
		h.logger.Info().
			Str("old", xnet.SanitizeURL(prev.RewardURL)).
			Str("new", xnet.SanitizeURL(next.RewardURL)).
			Msg("config changed: RewardURL")
	}

	restart := map[string]bool{
		"APIListenAddr":     prev.APIListenAddr != next.APIListenAddr,
		"MetricsListenAddr": prev.MetricsListenAddr != next.MetricsListenAddr,
		"TLS":               prev.TLSCert != next.TLSCert || prev.TLSKey != next.TLSKey,
		"Tracing":           prev.Tracing != next.Tracing,
		"Push":              prev.Push != next.Push,
		"Gate":              prev.Gate != next.Gate,
		"UI":                prev.UI != next.UI,
	}
	for field, changed := range restart {
		if changed {
			h.logger.Warn().
				Str(xglog.FieldEvent, "config.restart_required").
				Str("field", field).
				Msg("config change takes effect after restart")
		}
	}
}
