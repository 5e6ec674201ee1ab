// Package metrics exposes reading session counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readaloud"

// Metrics holds the session collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sentencesSpoken   prometheus.Counter
	bytesRead         prometheus.Counter
	synthesisDuration prometheus.Histogram
	playbackDuration  prometheus.Histogram
	sessions          *prometheus.CounterVec
	sessionErrors     *prometheus.CounterVec
	playing           prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg)
}

// NewWithRegistry creates the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		sentencesSpoken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_spoken_total",
			Help:      "Sentence chunks synthesized and played to completion.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Document bytes advanced past by reading sessions.",
		}),
		synthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent synthesizing one sentence chunk.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		playbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_duration_seconds",
			Help:      "Time spent playing one sentence chunk.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Reading sessions by how they ended.",
		}, []string{"outcome"}),
		sessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Reading session failures by kind.",
		}, []string{"kind"}),
		playing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playing",
			Help:      "1 while a reading session is active.",
		}),
	}

	reg.MustRegister(
		m.sentencesSpoken,
		m.bytesRead,
		m.synthesisDuration,
		m.playbackDuration,
		m.sessions,
		m.sessionErrors,
		m.playing,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SentenceSpoken records one completed sentence of n bytes.
func (m *Metrics) SentenceSpoken(n int) {
	if m == nil {
		return
	}
	m.sentencesSpoken.Inc()
	m.bytesRead.Add(float64(n))
}

// BytesSkipped records bytes advanced past without speech.
func (m *Metrics) BytesSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesRead.Add(float64(n))
}

// ObserveSynthesis records one synthesis call.
func (m *Metrics) ObserveSynthesis(d time.Duration) {
	if m == nil {
		return
	}
	m.synthesisDuration.Observe(d.Seconds())
}

// ObservePlayback records one playback call.
func (m *Metrics) ObservePlayback(d time.Duration) {
	if m == nil {
		return
	}
	m.playbackDuration.Observe(d.Seconds())
}

// SessionStarted marks a session as active.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.playing.Set(1)
}

// SessionEnded records how a session finished: "completed", "cancelled" or "failed".
func (m *Metrics) SessionEnded(outcome string) {
	if m == nil {
		return
	}
	m.playing.Set(0)
	m.sessions.WithLabelValues(outcome).Inc()
}

// SessionError records a failure of the given kind.
func (m *Metrics) SessionError(kind string) {
	if m == nil {
		return
	}
	m.sessionErrors.WithLabelValues(kind).Inc()
}
