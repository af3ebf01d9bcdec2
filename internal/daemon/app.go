// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"github.com/ManuGH/freesession/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Worker is a background loop that stops when its context is cancelled.
type Worker interface {
	Run(ctx context.Context)
}

// App owns the long-lived background workers (the mount janitor) and
// delegates server management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	workers map[string]Worker
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager) *App {
	return &App{
		logger:  logger,
		manager: manager,
		workers: make(map[string]Worker),
	}
}

// AddWorker registers a named worker started by Run.
func (a *App) AddWorker(name string, w Worker) {
	a.workers[name] = w
}

// Run starts the workers and the manager and blocks until ctx is cancelled
// or the manager fails. Workers are stopped before Run returns.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, w := range a.workers {
		g.Go(func() error {
			a.logger.Debug().Str(log.FieldEvent, "worker.start").Str("worker", name).Msg("worker started")
			w.Run(gctx)
			a.logger.Debug().Str(log.FieldEvent, "worker.stop").Str("worker", name).Msg("worker stopped")
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
