// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the daemon.
const (
	PushAppIDKey     = "push.app_id"
	PushAttemptKey   = "push.attempt"
	PushOutcomeKey   = "push.outcome"
	PushInitStateKey = "push.init_state"

	GateMountIDKey    = "gate.mount_id"
	GatePhaseKey      = "gate.phase"
	GateStandaloneKey = "gate.standalone"

	ErrorTypeKey = "error.type"
)

// PushAttributes describes a push client operation.
func PushAttributes(appID, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PushAppIDKey, appID),
		attribute.String(PushInitStateKey, state),
	}
}

// GateAttributes describes a mounted page.
func GateAttributes(mountID, phase string, standalone bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(GateMountIDKey, mountID),
		attribute.String(GatePhaseKey, phase),
		attribute.Bool(GateStandaloneKey, standalone),
	}
}

// ErrorAttributes classifies a failure.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errType)}
}
