// Package queue implements the stream transport of the gateway. This file
// exposes Prometheus instrumentation for turn processing. Label cardinality
// is kept bounded: outcome is one of a small fixed set.
package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// turnsTotal counts processed turns by outcome.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_turns_total",
			Help: "Total number of inbound turns processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// turnDuration records end-to-end turn latency in seconds, from dequeue
	// to reply published (or turn dropped).
	turnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_turn_duration_seconds",
			Help:    "Duration of turn processing in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Outcome labels recorded on turnsTotal.
const (
	outcomeReplied   = "replied"
	outcomeDropped   = "dropped"
	outcomeDuplicate = "duplicate"
	outcomeParseErr  = "parse_error"
	outcomeFailed    = "failed"
)

func init() {
	prometheus.MustRegister(turnsTotal, turnDuration)
}
