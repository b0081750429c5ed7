// Package metrics exposes Prometheus counters for ledger transitions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	votes       *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "transitions_total",
			Help:      "Requested ledger transitions by operation and result code.",
		}, []string{"operation", "result"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "governance",
			Name:      "votes_total",
			Help:      "Accepted votes by choice.",
		}, []string{"choice"}),
	}
	reg.MustRegister(m.transitions, m.votes, collectors.NewGoCollector())
	return m
}

// Transition counts one requested transition. result is "ok" or an error code.
func (m *Metrics) Transition(operation, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(operation, result).Inc()
}

// Vote counts one accepted vote.
func (m *Metrics) Vote(choice bool) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(strconv.FormatBool(choice)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
