// Package metrics provides Prometheus metrics for the tender scanner.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TenderScanner/internal/domain"
)

var (
	// BatchesTotal tracks completed batches by status
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderscanner",
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of ingestion batches by status",
		},
		[]string{"status"},
	)

	// BatchDuration tracks batch duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tenderscanner",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Duration of ingestion batches in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// SourceRunsTotal tracks extractor invocations by portal and status
	SourceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderscanner",
			Subsystem: "source",
			Name:      "runs_total",
			Help:      "Total number of extractor invocations by portal and status",
		},
		[]string{"portal", "status"},
	)

	// RecordsTotal tracks upsert outcomes by portal
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenderscanner",
			Subsystem: "store",
			Name:      "records_total",
			Help:      "Total number of reconciled records by portal and outcome",
		},
		[]string{"portal", "outcome"},
	)

	// ExpiredTotal tracks records deactivated by the sweep
	ExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenderscanner",
			Subsystem: "store",
			Name:      "expired_total",
			Help:      "Total number of tenders deactivated by the expiry sweep",
		},
	)

	// PurgedTotal tracks records deleted by retention
	PurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenderscanner",
			Subsystem: "store",
			Name:      "purged_total",
			Help:      "Total number of inactive tenders deleted by retention",
		},
	)

	// BatchesInFlight tracks batches currently running
	BatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tenderscanner",
			Subsystem: "batch",
			Name:      "in_flight",
			Help:      "Number of ingestion batches currently running",
		},
	)
)

// RecordSource records one extractor invocation.
func RecordSource(portal string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SourceRunsTotal.WithLabelValues(portal, status).Inc()
}

// RecordOutcome records one upsert result.
func RecordOutcome(portal string, outcome domain.UpsertOutcome) {
	RecordsTotal.WithLabelValues(portal, outcome.String()).Inc()
}

// RecordBatch records a finished batch.
func RecordBatch(report *domain.RunReport, err error) {
	status := "ok"
	switch {
	case err != nil:
		status = "fatal"
	case len(report.Errors) > 0:
		status = "partial"
	}
	BatchesTotal.WithLabelValues(status).Inc()
	BatchDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	ExpiredTotal.Add(float64(report.Expired))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
