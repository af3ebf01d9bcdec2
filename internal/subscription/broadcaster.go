// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package subscription holds the process-wide push-subscription status and
// fans changes out to observers.
package subscription

import (
	"sync"

	"github.com/ManuGH/freesession/internal/metrics"
)

// Status is the tri-state subscription status.
type Status int

const (
	// Unknown means the push client has not completed a status query yet.
	Unknown Status = iota
	NotSubscribed
	Subscribed
)

// FromBool converts a definitive query result into a Status.
func FromBool(subscribed bool) Status {
	if subscribed {
		return Subscribed
	}
	return NotSubscribed
}

// Known reports whether a status query has completed.
func (s Status) Known() bool { return s != Unknown }

// Bool returns the subscription value; Unknown reads as not subscribed.
func (s Status) Bool() bool { return s == Subscribed }

func (s Status) String() string {
	switch s {
	case NotSubscribed:
		return "false"
	case Subscribed:
		return "true"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as "unknown", "false" or "true".
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Listener receives every accepted status change.
type Listener func(subscribed bool)

// registration serialises deliveries to one listener and drops any value
// older than the last one it saw.
type registration struct {
	fn Listener

	mu   sync.Mutex
	seen uint64
}

func (r *registration) deliver(version uint64, subscribed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version <= r.seen {
		return
	}
	r.seen = version
	r.fn(subscribed)
}

// Broadcaster is the single writer of the subscription status.
//
// Update serialises fan-out so listeners observe values in Update order.
// Each stored value carries a version, and a listener never receives a value
// older than one it already saw, even when a Subscribe replay races an
// Update. Listeners run synchronously on the delivering goroutine and must
// not call Update themselves.
type Broadcaster struct {
	mu        sync.Mutex
	status    Status
	version   uint64
	listeners []*registration

	fanout sync.Mutex
}

// NewBroadcaster returns a Broadcaster in the Unknown state.
func NewBroadcaster() *Broadcaster {
	metrics.SetSubscriptionStatus(Unknown.String())
	return &Broadcaster{}
}

// Update stores the new value and notifies listeners. Redundant updates are
// dropped. Listeners registered while a fan-out is running are not invoked
// for that pass.
func (b *Broadcaster) Update(subscribed bool) {
	b.fanout.Lock()
	defer b.fanout.Unlock()

	next := FromBool(subscribed)

	b.mu.Lock()
	if b.status == next {
		b.mu.Unlock()
		return
	}
	b.status = next
	b.version++
	version := b.version
	snapshot := make([]*registration, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	metrics.SetSubscriptionStatus(next.String())

	for _, reg := range snapshot {
		if b.registered(reg) {
			reg.deliver(version, subscribed)
		}
	}
}

// Subscribe registers listener. When the status is already known the listener
// is called once with the current value before Subscribe returns. The returned
// function removes exactly this registration and is safe to call repeatedly.
// Subscribe may be called from inside a listener.
func (b *Broadcaster) Subscribe(listener Listener) (unsubscribe func()) {
	reg := &registration{fn: listener}

	b.mu.Lock()
	b.listeners = append(b.listeners, reg)
	current, version := b.status, b.version
	b.mu.Unlock()

	if current.Known() {
		reg.deliver(version, current.Bool())
	}

	return func() { b.remove(reg) }
}

// Current returns the stored status.
func (b *Broadcaster) Current() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Reset returns the broadcaster to Unknown and drops all listeners.
// Only tests call this.
func (b *Broadcaster) Reset() {
	b.fanout.Lock()
	defer b.fanout.Unlock()

	b.mu.Lock()
	b.status = Unknown
	b.listeners = nil
	b.mu.Unlock()
	metrics.SetSubscriptionStatus(Unknown.String())
}

func (b *Broadcaster) remove(reg *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, r := range b.listeners {
		if r == reg {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// registered skips listeners removed earlier in the same fan-out pass.
func (b *Broadcaster) registered(reg *registration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.listeners {
		if r == reg {
			return true
		}
	}
	return false
}
