package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	// ScansIngestedTotal tracks ingested scans by outcome
	ScansIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_ingested_total",
			Help: "Total number of ingested scans by outcome",
		},
		[]string{"status"},
	)

	// ScanIngestDuration tracks end-to-end ingestion duration
	ScanIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_ingest_duration_seconds",
			Help:    "Scan ingestion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// FindingsCreatedTotal tracks newly created findings by severity
	FindingsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "findings_created_total",
			Help: "Total number of findings created by severity",
		},
		[]string{"severity"},
	)

	// FindingsUpdatedTotal tracks findings refreshed by re-ingestion
	FindingsUpdatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "findings_updated_total",
			Help: "Total number of findings updated during ingestion",
		},
	)

	// FindingsAutoResolvedTotal tracks findings auto-resolved by reconciliation
	FindingsAutoResolvedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "findings_auto_resolved_total",
			Help: "Total number of findings auto-resolved by scan reconciliation",
		},
	)

	// LicensesObservedTotal tracks per-scan license observations by classification
	LicensesObservedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "licenses_observed_total",
			Help: "Total number of package license observations by classification",
		},
		[]string{"classification"},
	)
)

// Workflow metrics
var (
	// WorkflowTransitionsTotal tracks status transitions by target status and outcome
	WorkflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of finding status transitions by target status and outcome",
		},
		[]string{"to_status", "outcome"},
	)

	// WorkflowBulkBatchSize tracks bulk transition batch sizes
	WorkflowBulkBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workflow_bulk_batch_size",
			Help:    "Number of findings per bulk transition request",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

// Policy metrics
var (
	// PolicyEvaluationsTotal tracks policy evaluations by result
	PolicyEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_evaluations_total",
			Help: "Total number of policy evaluations by result",
		},
		[]string{"result"}, // result: "passed", "failed"
	)

	// PolicyViolationsTotal tracks blocking verdicts by classification
	PolicyViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_violations_total",
			Help: "Total number of blocking policy verdicts by license classification",
		},
		[]string{"classification"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks HTTP requests by method, path and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)
