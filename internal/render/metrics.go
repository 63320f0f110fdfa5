package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_submitted_total",
	Help: "The total number of render jobs submitted",
})

var jobsAttached = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_attached_total",
	Help: "The total number of duplicate submissions attached to an active job",
})

var jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_completed_total",
	Help: "The total number of render jobs completed",
})

var jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_failed_total",
	Help: "The total number of render jobs that reached the failed state",
})

var jobsRetried = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_retried_total",
	Help: "The total number of render jobs requeued for a retry",
})

var jobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_jobs_cancelled_total",
	Help: "The total number of render jobs cancelled",
})

var hardTimeouts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_hard_timeout_total",
	Help: "The total number of render jobs abandoned at the hard timeout",
})

var degradedRenders = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_degraded_total",
	Help: "The total number of renders where at least one wait phase timed out",
})

var artifactsEmitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_artifacts_emitted_total",
	Help: "The total number of report artifacts written to storage",
})

var artifactsDeduped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_render_artifacts_deduped_total",
	Help: "The total number of artifact writes skipped because the content hash already exists",
})

var browserLaunches = promauto.NewCounter(prometheus.CounterOpts{
	Name: "advisor_browser_launches_total",
	Help: "The total number of headless browser instances launched",
})
