// Package metrics exposes the bot's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Turns         *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	Achievements  *prometheus.CounterVec
	Outreach      *prometheus.CounterVec
	StorageErrors *prometheus.CounterVec
}

// MustNew registers every counter on reg and panics on a duplicate.
func MustNew(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "turns_total",
			Help:      "Inbound events handled, by kind.",
		}, []string{"kind"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "reply_fallbacks_total",
			Help:      "Replies served from the fallback table, by reason.",
		}, []string{"reason"}),
		Achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "achievements_total",
			Help:      "Achievements recorded, by title.",
		}, []string{"title"}),
		Outreach: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "outreach_total",
			Help:      "Proactive messages attempted, by tick and status.",
		}, []string{"tick", "status"}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Name:      "storage_errors_total",
			Help:      "Failed storage operations, by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(m.Turns, m.Fallbacks, m.Achievements, m.Outreach, m.StorageErrors)
	return m
}

// Nop returns counters registered on a throwaway registry.
func Nop() *Metrics { return MustNew(prometheus.NewRegistry()) }
