package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustsafety_job_runs_total",
	Help: "Scheduler job runs by outcome",
}, []string{"job", "result"})

var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "trustsafety_job_duration_seconds",
	Help:    "Scheduler job run duration",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"job"})

var JobItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustsafety_job_items_total",
	Help: "Rows changed by scheduler jobs",
}, []string{"job"})

var EnforcementActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustsafety_enforcement_actions_total",
	Help: "Enforcement outcomes applied to reports",
}, []string{"action"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustsafety_http_requests_total",
	Help: "HTTP requests by route and status",
}, []string{"method", "route", "status"})

var EmailEnqueue = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trustsafety_email_enqueue_total",
	Help: "Email enqueue attempts by outcome",
}, []string{"result"})
