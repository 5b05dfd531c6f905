// Package metrics provides Prometheus instrumentation for the explanation
// pipeline.
//
// Metrics are registered on an explicit registry passed to [New] so that the
// service, the CLI and tests each own their own set. All methods are safe to
// call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asmexplain"

// Explanation sources.
const (
	SourceMemory = "memory"
	SourceDisk   = "disk"
	SourceLLM    = "llm"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	// ExplanationsTotal counts served explanations by source (memory, disk, llm).
	ExplanationsTotal *prometheus.CounterVec

	// ErrorsTotal counts failed explain calls by error kind.
	ErrorsTotal *prometheus.CounterVec

	// LLMRequestsTotal counts provider HTTP attempts by outcome.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRetriesTotal counts backoff delays taken after transport failures.
	LLMRetriesTotal prometheus.Counter

	// LLMDurationSeconds measures whole Generate calls, retries included.
	LLMDurationSeconds prometheus.Histogram

	// PersistenceFailuresTotal counts durable cache writes that failed and were swallowed.
	PersistenceFailuresTotal prometheus.Counter

	// CacheReadFailuresTotal counts durable cache reads that failed and were treated as misses.
	CacheReadFailuresTotal prometheus.Counter

	// TrimmedTotal counts artifacts that had to be trimmed before prompting.
	TrimmedTotal prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExplanationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Explanations served, by source.",
		}, []string{"source"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explain_errors_total",
			Help:      "Failed explanation requests, by error kind.",
		}, []string{"kind"}),
		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Provider HTTP attempts, by outcome.",
		}, []string{"outcome"}),
		LLMRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "retries_total",
			Help:      "Backoff delays taken after transport failures.",
		}),
		LLMDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "duration_seconds",
			Help:      "Duration of provider calls including retries.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		}),
		PersistenceFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "persistence_failures_total",
			Help:      "Durable cache writes that failed; the explanation was still served.",
		}),
		CacheReadFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "read_failures_total",
			Help:      "Durable cache reads that failed and were treated as misses.",
		}),
		TrimmedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trimmed_artifacts_total",
			Help:      "Artifacts trimmed before prompt construction.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ExplanationsTotal,
			m.ErrorsTotal,
			m.LLMRequestsTotal,
			m.LLMRetriesTotal,
			m.LLMDurationSeconds,
			m.PersistenceFailuresTotal,
			m.CacheReadFailuresTotal,
			m.TrimmedTotal,
		)
	}
	return m
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Served(source string) {
	if m == nil {
		return
	}
	m.ExplanationsTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) Failed(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) LLMAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMRetry() {
	if m == nil {
		return
	}
	m.LLMRetriesTotal.Inc()
}

func (m *Metrics) LLMDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.LLMDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailuresTotal.Inc()
}

func (m *Metrics) CacheReadFailure() {
	if m == nil {
		return
	}
	m.CacheReadFailuresTotal.Inc()
}

func (m *Metrics) Trimmed() {
	if m == nil {
		return
	}
	m.TrimmedTotal.Inc()
}
