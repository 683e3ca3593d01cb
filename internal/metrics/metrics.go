// Package metrics exposes Prometheus instruments for the contact pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/portfolio-site/contactrelay/internal/outcome"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline instruments on their own registry.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers the instruments plus Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Contact submissions by result (sent or an outcome kind).",
		}, []string{"result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contact_submission_duration_seconds",
			Help:    "Time spent handling a contact submission.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.submissions,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create every series so dashboards see zeros instead of gaps.
	m.submissions.WithLabelValues("sent")
	for _, k := range outcome.Kinds {
		m.submissions.WithLabelValues(string(k))
	}
	return m
}

// ObserveSubmission records one finished submission. A nil err counts as sent.
func (m *Metrics) ObserveSubmission(err error, elapsed time.Duration) {
	result := "sent"
	if err != nil {
		result = string(outcome.KindOf(err))
	}
	m.submissions.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// Submissions exposes the counter for tests.
func (m *Metrics) Submissions() *prometheus.CounterVec {
	return m.submissions
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
