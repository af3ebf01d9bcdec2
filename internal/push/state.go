// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package push

import "errors"

// InitState is the lifecycle of the process-wide SDK initialization.
type InitState string

const (
	StateNotStarted   InitState = "not_started"
	StateInitializing InitState = "initializing"
	StateReady        InitState = "ready"
	StateFailed       InitState = "failed"
)

// Event is emitted to OnEvent listeners.
type Event string

const (
	// EventInitialized fires once the SDK reports a live instance.
	EventInitialized Event = "push.initialized"
	// EventReady fires when initialization settles, successfully or not,
	// so that waiting views never block on a broken provider.
	EventReady Event = "push.ready"
)

// Outcome is the detailed result of a permission-and-register request.
type Outcome string

const (
	OutcomeGranted       Outcome = "granted"
	OutcomeDenied        Outcome = "denied"
	OutcomeNotSubscribed Outcome = "not_subscribed"
	OutcomeUnavailable   Outcome = "unavailable"
	OutcomeFailed        Outcome = "failed"
	// OutcomeCancelled means the caller went away before an answer arrived.
	OutcomeCancelled Outcome = "cancelled"
)

// Granted reports whether the request left the user subscribed.
func (o Outcome) Granted() bool { return o == OutcomeGranted }

var (
	// ErrMissingAppID is logged when no provider application ID is configured.
	ErrMissingAppID = errors.New("push provider app id is not configured")
	// ErrNotReady is logged when the SDK never reported a live instance.
	ErrNotReady = errors.New("push sdk did not become ready")
)
