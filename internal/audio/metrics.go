// SPDX-License-Identifier: MIT
package audio

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for the source state machine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	transitions   *prometheus.CounterVec
	state         *prometheus.GaugeVec
	framesRouted  *prometheus.CounterVec
	outputErrors  *prometheus.CounterVec
	gain          prometheus.Gauge
	acquireTiming *prometheus.HistogramVec
}

// NewMetrics creates the engine metrics and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_transitions_total",
				Help: "Source state machine transitions by operation, target kind and result.",
			},
			[]string{"op", "kind", "result"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audioviz_source_state",
				Help: "1 for the current source kind, 0 otherwise.",
			},
			[]string{"kind"},
		),
		framesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_frames_routed_total",
				Help: "Sample frames routed to the analyser, by source kind.",
			},
			[]string{"kind"},
		),
		outputErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_output_errors_total",
				Help: "Failed writes to the playback output, by source kind.",
			},
			[]string{"kind"},
		),
		gain: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audioviz_output_gain",
			Help: "Gain applied by the active volume controller.",
		}),
		acquireTiming: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audioviz_acquire_duration_seconds",
				Help:    "Time taken to acquire a source.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"kind"},
		),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.transitions, m.state, m.framesRouted, m.outputErrors, m.gain, m.acquireTiming}
}

func (m *Metrics) transition(op string, kind SourceKind, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, kind.String(), result).Inc()
}

func (m *Metrics) setState(current SourceKind) {
	if m == nil {
		return
	}
	for k := Idle; k <= Synthetic; k++ {
		v := 0.0
		if k == current {
			v = 1
		}
		m.state.WithLabelValues(k.String()).Set(v)
	}
}

func (m *Metrics) samplesRouted(kind SourceKind, frames int) {
	if m == nil {
		return
	}
	m.framesRouted.WithLabelValues(kind.String()).Add(float64(frames))
}

func (m *Metrics) outputError(kind SourceKind) {
	if m == nil {
		return
	}
	m.outputErrors.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) setGain(g float64) {
	if m == nil {
		return
	}
	m.gain.Set(g)
}

func (m *Metrics) acquired(kind SourceKind, seconds float64) {
	if m == nil {
		return
	}
	m.acquireTiming.WithLabelValues(kind.String()).Observe(seconds)
}
