// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gate composes detection, phase resolution and push polling for each
// mounted page and keeps the registry of live mounts.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/freesession/internal/phase"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/subscription"
)

// Snapshot is the externally visible state of a mount.
type Snapshot struct {
	MountID      string              `json:"mount_id"`
	Phase        phase.Phase         `json:"phase"`
	Standalone   bool                `json:"standalone"`
	Subscription subscription.Status `json:"subscription"`
	Settled      bool                `json:"settled"`
	OS           platform.OS         `json:"os"`
}

// Gate is one mounted page. Standalone gates own a resolver subscribed to
// the broadcaster and a goroutine that initializes the push client and polls
// until the gate is unmounted.
type Gate struct {
	id         string
	os         platform.OS
	standalone bool
	resolver   *phase.Resolver
	client     *push.Client

	mu       sync.Mutex
	lastSeen time.Time
	initDone bool

	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the mount identifier.
func (g *Gate) ID() string { return g.id }

// OS returns the platform the page reported.
func (g *Gate) OS() platform.OS { return g.os }

// Standalone reports whether the page was launched as an installed app.
func (g *Gate) Standalone() bool { return g.standalone }

// Phase returns the current phase.
func (g *Gate) Phase() phase.Phase { return g.resolver.Current() }

// Watch forwards to the resolver.
func (g *Gate) Watch(fn phase.Listener) (unwatch func()) { return g.resolver.Watch(fn) }

// LastSeen returns the time of the latest Touch.
func (g *Gate) LastSeen() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSeen
}

// Settled reports whether the view can stop showing a loading indicator:
// browser tabs are settled immediately, standalone pages once the status is
// known or the push client has finished initializing either way.
func (g *Gate) Settled() bool {
	if !g.standalone {
		return true
	}
	if g.resolver.Status().Known() {
		return true
	}
	g.mu.Lock()
	initDone := g.initDone
	g.mu.Unlock()
	if initDone {
		return true
	}
	switch g.client.State() {
	case push.StateReady, push.StateFailed:
		return true
	default:
		return false
	}
}

// Snapshot returns the current view state.
func (g *Gate) Snapshot() Snapshot {
	return Snapshot{
		MountID:      g.id,
		Phase:        g.resolver.Current(),
		Standalone:   g.standalone,
		Subscription: g.resolver.Status(),
		Settled:      g.Settled(),
		OS:           g.os,
	}
}

func (g *Gate) touch(now time.Time) {
	g.mu.Lock()
	g.lastSeen = now
	g.mu.Unlock()
}

func (g *Gate) markInitDone() {
	g.mu.Lock()
	g.initDone = true
	g.mu.Unlock()
}

// stop cancels the gate's goroutine, waits for it and detaches the resolver.
func (g *Gate) stop() {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
	g.resolver.Close()
}
