// Package metrics holds the Prometheus collectors of the stake engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StakeInstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakecore_instructions_total",
			Help: "Total number of stake instructions executed, by outcome",
		},
		[]string{"instruction", "result"},
	)

	MergeKindsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stakecore_merge_kinds_total",
			Help: "Total number of stake accounts classified for merge or move",
		},
		[]string{"kind"},
	)

	ActivationEvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stakecore_activation_evaluation_duration_seconds",
			Help:    "Duration of evaluating one delegation over an epoch range",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)
