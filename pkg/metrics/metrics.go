package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	mixdesk = "mixdesk"

	// Job metrics
	jobsSubmittedTotal = "jobs_submitted_total"
	jobsFinishedTotal  = "jobs_finished_total"
	JobActive          = "job_active"

	// Composer metrics
	composerRequestsTotal = "composer_requests_total"

	// Artifact metrics
	artifactDownloadsTotal = "artifact_downloads_total"

	// Labels
	submitOutcomeLabel     = "outcome"
	finishResultLabel      = "result"
	composerOperationLabel = "operation"
	composerResultLabel    = "result"
	downloadStateLabel     = "state"
)

// Submit outcomes
const (
	SubmitAccepted       = "accepted"
	SubmitRejectedEmpty  = "rejected_empty"
	SubmitRejectedActive = "rejected_active"
)

// Artifact download states
const (
	DownloadStarted   = "started"
	DownloadCompleted = "completed"
	DownloadFailed    = "failed"
)

var jobsSubmittedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mixdesk,
		Name:      jobsSubmittedTotal,
		Help:      "number of job submissions by outcome",
	},
	[]string{submitOutcomeLabel},
)

var jobsFinishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mixdesk,
		Name:      jobsFinishedTotal,
		Help:      "number of jobs that reached a terminal phase, by result",
	},
	[]string{finishResultLabel},
)

var jobActiveMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: mixdesk,
		Name:      JobActive,
		Help:      "1 while a job is in flight, 0 otherwise",
	},
)

var composerRequestsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mixdesk,
		Name:      composerRequestsTotal,
		Help:      "number of requests sent to the composer service, by operation and result",
	},
	[]string{composerOperationLabel, composerResultLabel},
)

var artifactDownloadsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: mixdesk,
		Name:      artifactDownloadsTotal,
		Help:      "number of artifact downloads by state",
	},
	[]string{downloadStateLabel},
)

func IncreaseJobsSubmittedMetric(outcome string) {
	jobsSubmittedTotalMetric.With(prometheus.Labels{submitOutcomeLabel: outcome}).Inc()
}

func IncreaseJobsFinishedMetric(result string) {
	jobsFinishedTotalMetric.With(prometheus.Labels{finishResultLabel: result}).Inc()
}

func SetJobActiveMetric(active bool) {
	v := float64(0)
	if active {
		v = 1
	}
	jobActiveMetric.Set(v)
}

func IncreaseComposerRequestsMetric(operation string, result string) {
	composerRequestsTotalMetric.With(prometheus.Labels{
		composerOperationLabel: operation,
		composerResultLabel:    result,
	}).Inc()
}

func IncreaseArtifactDownloadsTotalMetric(state string) {
	artifactDownloadsTotalMetric.With(prometheus.Labels{downloadStateLabel: state}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsSubmittedTotalMetric)
	prometheus.MustRegister(jobsFinishedTotalMetric)
	prometheus.MustRegister(jobActiveMetric)
	prometheus.MustRegister(composerRequestsTotalMetric)
	prometheus.MustRegister(artifactDownloadsTotalMetric)
}
