// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package phase derives which step of the reward flow a page shows.
package phase

import (
	"sync"

	"github.com/ManuGH/freesession/internal/metrics"
	"github.com/ManuGH/freesession/internal/subscription"
)

// Phase is the view a mount renders.
type Phase string

const (
	Install    Phase = "install"
	Permission Phase = "permission"
	Unlocked   Phase = "unlocked"
)

// Resolve maps the two inputs to a phase. Only a definitive true status
// unlocks; unknown and false both stay on the permission step.
func Resolve(standalone bool, status subscription.Status) Phase {
	switch {
	case !standalone:
		return Install
	case status != subscription.Subscribed:
		return Permission
	default:
		return Unlocked
	}
}

// Listener observes phase changes.
type Listener func(prev, next Phase)

type watcher struct {
	fn Listener
}

// Resolver tracks the phase of one mount.
type Resolver struct {
	standalone bool

	mu       sync.Mutex
	current  Phase
	status   subscription.Status
	watchers []*watcher
	closed   bool

	unsubscribe func()
}

// NewResolver starts in Install. A standalone resolver subscribes to b and
// moves to Permission immediately; a browser-tab resolver never subscribes.
func NewResolver(standalone bool, b *subscription.Broadcaster) *Resolver {
	r := &Resolver{
		standalone: standalone,
		current:    Install,
	}
	if !standalone || b == nil {
		return r
	}

	r.recompute(subscription.Unknown)
	unsubscribe := b.Subscribe(func(subscribed bool) {
		r.recompute(subscription.FromBool(subscribed))
	})

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsubscribe()
		return r
	}
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	return r
}

// Standalone reports the mount's launch mode.
func (r *Resolver) Standalone() bool { return r.standalone }

// Current returns the resolved phase.
func (r *Resolver) Current() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Status returns the last subscription status this resolver observed.
func (r *Resolver) Status() subscription.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Watch registers fn for phase changes and returns its removal function.
func (r *Resolver) Watch(fn Listener) (unwatch func()) {
	w := &watcher{fn: fn}
	r.mu.Lock()
	r.watchers = append(r.watchers, w)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, cur := range r.watchers {
			if cur == w {
				r.watchers = append(r.watchers[:i:i], r.watchers[i+1:]...)
				return
			}
		}
	}
}

// Close detaches the resolver from the broadcaster. The phase is frozen
// afterwards.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.watchers = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (r *Resolver) recompute(status subscription.Status) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.status = status
	prev := r.current
	next := Resolve(r.standalone, status)
	if prev == next {
		r.mu.Unlock()
		return
	}
	r.current = next
	snapshot := make([]*watcher, len(r.watchers))
	copy(snapshot, r.watchers)
	r.mu.Unlock()

	metrics.IncPhaseTransition(string(prev), string(next))
	for _, w := range snapshot {
		w.fn(prev, next)
	}
}
