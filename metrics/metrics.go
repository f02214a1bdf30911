// Package metrics registers the service's prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes.
const (
	OutcomeAnswered    = "answered"
	OutcomeNoKnowledge = "no_knowledge"
	OutcomeCacheHit    = "cache_hit"
	OutcomeError       = "error"
)

// Pipeline stages.
const (
	StageRetrieve = "retrieve"
	StageRerank   = "rerank"
	StageGenerate = "generate"
)

var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govrag",
		Name:      "queries_total",
		Help:      "Queries by final outcome.",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "govrag",
		Name:      "stage_duration_seconds",
		Help:      "Per-stage latency of the query pipeline.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	CandidatesAdmitted = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "govrag",
		Name:      "candidates_admitted",
		Help:      "Candidates surviving the similarity cutoff per query.",
		Buckets:   []float64{0, 1, 3, 5, 10, 20, 30, 60},
	})

	IngestPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "govrag",
		Name:      "ingest_pages_total",
		Help:      "Ingested pages by result.",
	}, []string{"status"})

	IngestChunks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "govrag",
		Name:      "ingest_chunks_total",
		Help:      "Chunks written to the vector store.",
	})
)

// ObserveStage records elapsed time for one pipeline stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
