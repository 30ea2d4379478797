// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_worker_jobs_failed_total",
			Help: "Total number of jobs whose handler returned an error",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gacp_worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gacp_worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gacp_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	WizardSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gacp_wizard_sessions_active",
			Help: "Wizard sessions currently held in memory",
		},
	)

	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_draft_saves_total",
			Help: "Debounced draft writes by outcome",
		},
		[]string{"outcome"},
	)

	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_wizard_step_transitions_total",
			Help: "Wizard navigation attempts by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_submissions_total",
			Help: "Application submissions by outcome",
		},
		[]string{"outcome"},
	)

	DocumentUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_document_uploads_total",
			Help: "Document uploads by slot and outcome",
		},
		[]string{"slot", "outcome"},
	)

	MasterDataLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gacp_master_data_lookups_total",
			Help: "Master data lookups by kind and the source that answered",
		},
		[]string{"kind", "source"},
	)
)
