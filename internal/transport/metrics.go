// SPDX-License-Identifier: MIT
package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks WebSocket delivery. A nil *Metrics records nothing.
type Metrics struct {
	clients  prometheus.Gauge
	sent     *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	failures prometheus.Counter
}

// NewMetrics creates the transport metrics and registers them with reg when
// it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audioviz_ws_clients",
			Help: "Connected WebSocket clients.",
		}),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_ws_messages_sent_total",
				Help: "Messages written to WebSocket clients, by message type.",
			},
			[]string{"type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audioviz_ws_messages_dropped_total",
				Help: "Messages dropped before broadcast, by reason.",
			},
			[]string{"reason"},
		),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audioviz_ws_write_failures_total",
			Help: "Client writes that failed and disconnected the client.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.clients, m.sent, m.dropped, m.failures} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}

func (m *Metrics) messageSent(kind string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(kind).Inc()
}

func (m *Metrics) messageDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) writeFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
