// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModerationDecisions counts moderation outcomes by decision.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_moderation_decisions_total",
		Help: "Total number of moderation decisions by outcome",
	}, []string{"decision"})

	// EngagementToggles counts like/favorite toggles by kind and resulting state.
	EngagementToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_engagement_toggles_total",
		Help: "Total number of engagement toggles by kind and resulting state",
	}, []string{"kind", "state"})

	// CommentsWritten counts comment additions and removals.
	CommentsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_comments_total",
		Help: "Total number of comment writes by operation",
	}, []string{"operation"})

	// ReviewOracleRequests counts content screening calls by outcome.
	ReviewOracleRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_review_oracle_requests_total",
		Help: "Total number of content screening requests by outcome",
	}, []string{"outcome"})

	// ReviewOracleLatency records content screening round-trip latency.
	ReviewOracleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "traveldiary_review_oracle_latency_seconds",
		Help:    "Content screening request latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
	})

	// BlobUploads counts media uploads by outcome.
	BlobUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_blob_uploads_total",
		Help: "Total number of media uploads by outcome",
	}, []string{"outcome"})

	// OrphansSwept counts rows removed by the orphan sweep per table.
	OrphansSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "traveldiary_orphans_swept_total",
		Help: "Total number of orphaned rows removed by table",
	}, []string{"table"})
)

// RecordToggle increments the toggle counter; active is the state after the toggle.
func RecordToggle(kind string, active bool) {
	state := "off"
	if active {
		state = "on"
	}
	EngagementToggles.WithLabelValues(kind, state).Inc()
}

// ObserveReview records one oracle call.
func ObserveReview(outcome string, start time.Time) {
	ReviewOracleRequests.WithLabelValues(outcome).Inc()
	ReviewOracleLatency.Observe(time.Since(start).Seconds())
}
