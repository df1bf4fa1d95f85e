// Package jobmetrics instruments background task runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	digest      *prometheus.CounterVec
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg shares one instance
// registered on the Prometheus default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmasight",
			Name:      "jobs_total",
			Help:      "Job runs by task type and outcome.",
		}, []string{"job", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmasight",
			Name:      "jobs_failures_total",
			Help:      "Job runs that returned an error.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pharmasight",
			Name:      "job_duration_seconds",
			Help:      "Wall time of job runs.",
			Buckets:   []float64{.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pharmasight",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error.",
		}, []string{"job"}),
		digest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pharmasight",
			Name:      "digest_pharmacies_total",
			Help:      "Pharmacies processed by the group digest by view mode and outcome.",
		}, []string{"mode", "outcome"}),
	}
	reg.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.digest)
	return m
}

// Run times a single job execution.
type Run struct {
	metrics *Metrics
	job     string
	started time.Time
}

// Track starts timing a run of job.
func (m *Metrics) Track(job string) *Run {
	return &Run{metrics: m, job: job, started: time.Now()}
}

// End records the outcome of the run and passes err through.
func (r *Run) End(err error) error {
	if r == nil || r.metrics == nil || r.job == "" {
		return err
	}
	m := r.metrics
	m.duration.WithLabelValues(r.job).Observe(time.Since(r.started).Seconds())
	if err != nil {
		m.runs.WithLabelValues(r.job, outcomeError).Inc()
		m.failures.WithLabelValues(r.job).Inc()
		return err
	}
	m.runs.WithLabelValues(r.job, outcomeOK).Inc()
	m.lastSuccess.WithLabelValues(r.job).SetToCurrentTime()
	return nil
}

// AddDigestPharmacies counts the pharmacies a digest run loaded and failed
// for one view mode.
func (m *Metrics) AddDigestPharmacies(mode string, loaded, failed int) {
	if m == nil {
		return
	}
	if loaded > 0 {
		m.digest.WithLabelValues(mode, "loaded").Add(float64(loaded))
	}
	if failed > 0 {
		m.digest.WithLabelValues(mode, "failed").Add(float64(failed))
	}
}
