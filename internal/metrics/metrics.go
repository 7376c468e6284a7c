// Package metrics holds the process-wide Prometheus collectors, exposed by
// the HTTP server on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScoringPasses counts completed MarkCorrectAndScore passes by outcome.
	ScoringPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betpool_scoring_passes_total",
		Help: "Completed scoring passes, labeled by outcome.",
	}, []string{"outcome"})

	// AnswersMarked counts (correct, score) updates committed by scoring passes.
	AnswersMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betpool_answers_marked_total",
		Help: "Answer score updates written back by the scoring engine.",
	})

	// RebuildDuration observes the wall time of standings rebuilds.
	RebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "betpool_rebuild_duration_seconds",
		Help:    "Duration of tally-and-sequence rebuilds.",
		Buckets: prometheus.DefBuckets,
	})

	// LookupCache counts enrichment lookup cache hits and misses.
	LookupCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "betpool_lookup_cache_total",
		Help: "Enrichment lookup cache hits and misses.",
	}, []string{"result"})
)
