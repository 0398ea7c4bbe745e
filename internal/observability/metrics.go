package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the author matching service,
// grouped by subsystem: publications, decisions, metadata resolution, batches,
// reviews, enrichment and events. All collectors are registered via promauto
// with the default registry, so a namespace may only be created once per process.
//
// Record methods are safe to call on a nil *Metrics and do nothing.
type Metrics struct {
	// PublicationsMatched counts pipeline runs, labeled by resulting match status.
	PublicationsMatched *prometheus.CounterVec

	// DecisionsTotal counts match decisions, labeled by tier and method.
	DecisionsTotal *prometheus.CounterVec

	// DecisionConfidence observes the final confidence of every decision.
	DecisionConfidence prometheus.Histogram

	// UnresolvedAuthors counts resolved authors that got no acceptable candidate.
	UnresolvedAuthors prometheus.Counter

	// MentionsFound counts researcher name mentions found in unresolved publications.
	MentionsFound prometheus.Counter

	// ResolverRequests counts metadata lookups, labeled by source and outcome.
	ResolverRequests *prometheus.CounterVec

	// ResolverDuration observes metadata lookup latency in seconds, labeled by source.
	ResolverDuration *prometheus.HistogramVec

	// BatchesStarted counts batch matching runs initiated.
	BatchesStarted prometheus.Counter

	// BatchesCompleted counts batch matching runs that finished.
	BatchesCompleted prometheus.Counter

	// BatchesFailed counts batch matching runs that failed.
	BatchesFailed prometheus.Counter

	// BatchDuration observes the end-to-end duration of batches in seconds.
	BatchDuration prometheus.Histogram

	// ReviewsRecorded counts manual review outcomes, labeled by outcome.
	ReviewsRecorded *prometheus.CounterVec

	// EnrichmentResults counts ORCID link attempts, labeled by result status.
	EnrichmentResults *prometheus.CounterVec

	// EventsPublished counts events written to the broker, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts events that could not be written, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Pipeline
		PublicationsMatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_matched_total",
			Help:      "Total number of publications run through the matching pipeline by status",
		}, []string{"status"}),
		DecisionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of match decisions by tier and method",
		}, []string{"tier", "method"}),
		DecisionConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_confidence",
			Help:      "Final confidence of match decisions",
			Buckets:   []float64{0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		}),
		UnresolvedAuthors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_authors_total",
			Help:      "Total number of authors without an acceptable candidate",
		}),
		MentionsFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_found_total",
			Help:      "Total number of researcher mentions found in unresolved publications",
		}),

		// Metadata resolution
		ResolverRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Total number of metadata lookups by source and outcome",
		}, []string{"source", "outcome"}),
		ResolverDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_request_duration_seconds",
			Help:      "Duration of metadata lookups in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),

		// Batches
		BatchesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_started_total",
			Help:      "Total number of batch matching runs started",
		}),
		BatchesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_completed_total",
			Help:      "Total number of batch matching runs completed",
		}),
		BatchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_failed_total",
			Help:      "Total number of batch matching runs that failed",
		}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch matching runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		// Reviews and enrichment
		ReviewsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_recorded_total",
			Help:      "Total number of manual review outcomes",
		}, []string{"outcome"}),
		EnrichmentResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orcid_enrichment_total",
			Help:      "Total number of ORCID link attempts by result",
		}, []string{"status"}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed to publish",
		}, []string{"event_type"}),
	}
}

// RecordPublication records one pipeline run and its unresolved author count.
func (m *Metrics) RecordPublication(status string, unresolvedAuthors, mentions int) {
	if m == nil {
		return
	}
	m.PublicationsMatched.WithLabelValues(status).Inc()
	m.UnresolvedAuthors.Add(float64(unresolvedAuthors))
	m.MentionsFound.Add(float64(mentions))
}

// RecordDecision records one match decision.
func (m *Metrics) RecordDecision(tier, method string, confidence float64) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(tier, method).Inc()
	m.DecisionConfidence.Observe(confidence)
}

// RecordResolverRequest records one metadata lookup.
func (m *Metrics) RecordResolverRequest(source, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ResolverRequests.WithLabelValues(source, outcome).Inc()
	m.ResolverDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordBatchStarted increments the batches started counter.
func (m *Metrics) RecordBatchStarted() {
	if m == nil {
		return
	}
	m.BatchesStarted.Inc()
}

// RecordBatchCompleted records a finished batch and its duration.
func (m *Metrics) RecordBatchCompleted(durationSeconds float64) {
	if m == nil {
		return
	}
	m.BatchesCompleted.Inc()
	m.BatchDuration.Observe(durationSeconds)
}

// RecordBatchFailed records a failed batch and its duration.
func (m *Metrics) RecordBatchFailed(durationSeconds float64) {
	if m == nil {
		return
	}
	m.BatchesFailed.Inc()
	m.BatchDuration.Observe(durationSeconds)
}

// RecordReview records a manual review outcome ("accepted" or "rejected").
func (m *Metrics) RecordReview(outcome string) {
	if m == nil {
		return
	}
	m.ReviewsRecorded.WithLabelValues(outcome).Inc()
}

// RecordEnrichment records the result status of an ORCID link attempt.
func (m *Metrics) RecordEnrichment(status string) {
	if m == nil {
		return
	}
	m.EnrichmentResults.WithLabelValues(status).Inc()
}

// RecordEventPublished records a published event.
func (m *Metrics) RecordEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records an event that could not be published.
func (m *Metrics) RecordEventFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
