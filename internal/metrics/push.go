// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushInitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "freesession_push_init_state",
		Help: "Push client initialization state (active state=1, others 0)",
	}, []string{"state"})

	pushInitAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_push_init_attempts_total",
		Help: "Push SDK initialization attempts by outcome",
	}, []string{"outcome"}) // outcome=ready|not_ready|setup_error|canceled

	pushSDKSetups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "freesession_push_sdk_setup_calls_total",
		Help: "Total number of underlying push SDK setup invocations",
	})

	subscriptionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "freesession_push_subscription_status",
		Help: "Current push subscription status (active value=1, others 0)",
	}, []string{"status"})

	statusQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_push_status_queries_total",
		Help: "Push subscription status queries by result",
	}, []string{"result"}) // result=subscribed|not_subscribed|error

	permissionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_permission_requests_total",
		Help: "Permission-and-register requests by outcome",
	}, []string{"outcome"})
)

var (
	initStates           = []string{"not_started", "initializing", "ready", "failed"}
	subscriptionStatuses = []string{"unknown", "false", "true"}
)

func setOneHot(vec *prometheus.GaugeVec, all []string, active string) {
	for _, s := range all {
		value := 0.0
		if s == active {
			value = 1.0
		}
		vec.WithLabelValues(s).Set(value)
	}
}

// SetPushInitState records the active push client initialization state.
func SetPushInitState(state string) { setOneHot(pushInitState, initStates, state) }

// IncPushInitAttempt counts one setup+readiness attempt.
func IncPushInitAttempt(outcome string) { pushInitAttempts.WithLabelValues(outcome).Inc() }

// IncPushSDKSetup counts one invocation of the SDK's setup call.
func IncPushSDKSetup() { pushSDKSetups.Inc() }

// SetSubscriptionStatus records the broadcaster's current value.
func SetSubscriptionStatus(status string) {
	setOneHot(subscriptionStatus, subscriptionStatuses, status)
}

// IncStatusQuery counts one subscription status query.
func IncStatusQuery(result string) { statusQueries.WithLabelValues(result).Inc() }

// IncPermissionOutcome counts one permission-and-register request.
func IncPermissionOutcome(outcome string) { permissionOutcomes.WithLabelValues(outcome).Inc() }

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "freesession_circuit_breaker_state",
		Help: "Circuit breaker state per dependency (active state=1, others 0)",
	}, []string{"name", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"})
)

var breakerStates = []string{"closed", "open", "half-open"}

// SetCircuitBreakerState records the active state of the named breaker.
func SetCircuitBreakerState(name, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(name, s).Set(value)
	}
}

// RecordCircuitBreakerTrip counts one transition to open.
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}
