// Package metrics exposes worker and pipeline counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/ports"
)

// Recorder implements ports.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	claimed       prometheus.Counter
	completed     *prometheus.CounterVec
	requeued      *prometheus.CounterVec
	failed        *prometheus.CounterVec
	reportRetries prometheus.Counter
	scores        prometheus.Histogram
	providerCalls *prometheus.HistogramVec
}

var _ ports.Metrics = (*Recorder)(nil)

// New registers every collector plus the Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "claimscanner",
			Name:      "jobs_claimed_total",
			Help:      "Jobs claimed by workers.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimscanner",
			Name:      "jobs_completed_total",
			Help:      "Jobs completed, by routing tier.",
		}, []string{"tier"}),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimscanner",
			Name:      "jobs_requeued_total",
			Help:      "Failed attempts returned to the queue, by error code.",
		}, []string{"code"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claimscanner",
			Name:      "jobs_failed_total",
			Help:      "Jobs failed permanently, by error code.",
		}, []string{"code"}),
		reportRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "claimscanner",
			Name:      "report_validation_retries_total",
			Help:      "Strict-instruction retries after an invalid report.",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "claimscanner",
			Name:      "final_score",
			Help:      "Distribution of final claim risk scores.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		providerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "claimscanner",
			Name:      "provider_call_seconds",
			Help:      "Latency of text-generation calls, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.claimed, r.completed, r.requeued, r.failed, r.reportRetries, r.scores, r.providerCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for tests and custom handlers.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) JobClaimed() { r.claimed.Inc() }

func (r *Recorder) JobCompleted(tier domain.Tier, score *float64) {
	r.completed.WithLabelValues(string(tier)).Inc()
	if score != nil {
		r.scores.Observe(*score)
	}
}

func (r *Recorder) JobRequeued(code string) { r.requeued.WithLabelValues(code).Inc() }

func (r *Recorder) JobFailed(code string) { r.failed.WithLabelValues(code).Inc() }

func (r *Recorder) ReportRetried() { r.reportRetries.Inc() }

func (r *Recorder) ProviderCall(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.providerCalls.WithLabelValues(outcome).Observe(d.Seconds())
}

// Nop discards every event.
type Nop struct{}

var _ ports.Metrics = Nop{}

func (Nop) JobClaimed()                        {}
func (Nop) JobCompleted(domain.Tier, *float64) {}
func (Nop) JobRequeued(string)                 {}
func (Nop) JobFailed(string)                   {}
func (Nop) ReportRetried()                     {}
func (Nop) ProviderCall(time.Duration, error)  {}
