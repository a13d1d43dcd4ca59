// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	VocabularySearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vocabulary_search_total",
			Help: "Vocabulary lookups by backend and outcome (hit, empty, error, cached)",
		},
		[]string{"backend", "outcome"},
	)

	VocabularySearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vocabulary_search_duration_seconds",
			Help:    "Duration of a single vocabulary lookup including upstream calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"backend"},
	)

	ConceptExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concept_extraction_total",
			Help: "Concept extraction batches by path (llm, heuristic, mixed)",
		},
		[]string{"path"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "End-to-end duration of a term resolution request",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	PipelineUniqueTerms = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_unique_terms",
			Help:    "Number of unique terms returned per request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)

const (
	OutcomeHit    = "hit"
	OutcomeEmpty  = "empty"
	OutcomeError  = "error"
	OutcomeCached = "cached"
)

// ObserveJob records the outcome of one Zeebe job.
func ObserveJob(taskType, errorCode string, seconds float64) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(seconds)
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
