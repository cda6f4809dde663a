// SPDX-License-Identifier: MIT
package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts produced and dropped frames. A nil *Metrics records
// nothing.
type Metrics struct {
	framesProduced prometheus.Counter
	framesDropped  *prometheus.CounterVec
}

// NewMetrics creates the bridge metrics and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_bridge_frames_total",
			Help: "Sample frames produced by the bridge.",
		}),
		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_bridge_frames_dropped_total",
				Help: "Frames a subscriber missed because it had not consumed the previous one.",
			},
			[]string{"subscriber"},
		),
	}
	if reg != nil {
		if err := reg.Register(m.framesProduced); err != nil {
			return nil, err
		}
		if err := reg.Register(m.framesDropped); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) produced() {
	if m == nil {
		return
	}
	m.framesProduced.Inc()
}

func (m *Metrics) dropped(subscriber string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(subscriber).Inc()
}
