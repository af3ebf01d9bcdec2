// SPDX-License-Identifier: MIT

// Package daemon runs the HTTP servers and background workers and tears them
// down in order on shutdown.
package daemon

import (
	"net/http"
	"time"

	"github.com/ManuGH/freesession/internal/config"
	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config supplies listen addresses, TLS files and the shutdown timeout.
	Config config.AppConfig

	// APIHandler serves pages and the JSON API.
	APIHandler http.Handler

	// MetricsHandler serves Prometheus metrics on MetricsListenAddr.
	// Nil or an empty address disables the metrics listener.
	MetricsHandler http.Handler
}

// ServerConfig holds HTTP server timeouts.
type ServerConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the production timeouts. WriteTimeout stays
// above the push client's worst permission round trip.
func DefaultServerConfig(shutdown time.Duration) ServerConfig {
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	return ServerConfig{
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		MaxHeaderBytes:  1 << 16,
		ShutdownTimeout: shutdown,
	}
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
