package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	postings   *prometheus.CounterVec
	unbalanced *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// ObservePosting counts one drained queue row by event kind and outcome.
func (m *Metrics) ObservePosting(kind, outcome string) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(kind, outcome).Inc()
}

// SetUnbalanced records how many posted documents of entityID fail the balance check.
func (m *Metrics) SetUnbalanced(entityID int64, count int) {
	if m == nil {
		return
	}
	entity := "0"
	if entityID > 0 {
		entity = strconv.FormatInt(entityID, 10)
	}
	m.unbalanced.WithLabelValues(entity).Set(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backoffice_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_postings_total",
		Help: "Posting queue rows processed, by event kind and outcome.",
	}, []string{"kind", "outcome"})
	unbalanced := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backoffice_ledger_unbalanced_documents",
		Help: "Posted documents whose debit and credit totals differ, by entity.",
	}, []string{"entity"})
	registerer.MustRegister(runs, failures, duration, postings, unbalanced)
	return &Metrics{runs: runs, failures: failures, duration: duration, postings: postings, unbalanced: unbalanced}
}
