// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_phase_transitions_total",
		Help: "Phase changes observed by mounted resolvers",
	}, []string{"from", "to"})

	mountsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "freesession_mounts_active",
		Help: "Number of currently mounted page contexts",
	})

	mountsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_mounts_total",
		Help: "Page mounts by launch mode",
	}, []string{"mode"}) // mode=standalone|browser

	unmountsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_unmounts_total",
		Help: "Page unmounts by reason",
	}, []string{"reason"}) // reason=explicit|idle|shutdown

	rewardRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freesession_reward_redirects_total",
		Help: "Reward link requests by result",
	}, []string{"result"}) // result=redirected|locked
)

func IncPhaseTransition(from, to string) { phaseTransitions.WithLabelValues(from, to).Inc() }
func SetMountsActive(n int)              { mountsActive.Set(float64(n)) }
func IncMount(mode string)               { mountsTotal.WithLabelValues(mode).Inc() }
func IncUnmount(reason string)           { unmountsTotal.WithLabelValues(reason).Inc() }
func IncRewardRedirect(result string)    { rewardRedirects.WithLabelValues(result).Inc() }
