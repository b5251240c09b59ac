// Package metrics exposes listener activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "midiviewer"

// Listener counts session lifecycle events per device.
type Listener struct {
	sessions *prometheus.CounterVec
	messages *prometheus.CounterVec
	errors   *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewListener creates the listener collectors and registers them on reg.
func NewListener(reg prometheus.Registerer) (*Listener, error) {
	m := &Listener{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Listening sessions started, by device.",
		}, []string{"device"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "MIDI messages forwarded to the log, by device.",
		}, []string{"device"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Sessions ended by an open or receive error, by device.",
		}, []string{"device"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently listening.",
		}),
	}

	for _, c := range []prometheus.Collector{m.sessions, m.messages, m.errors, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SessionStarted records a new session for device.
func (m *Listener) SessionStarted(device string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(device).Inc()
	m.active.Inc()
}

// SessionEnded records the end of a session.
func (m *Listener) SessionEnded() {
	if m == nil {
		return
	}
	m.active.Dec()
}

// MessageReceived records one forwarded message.
func (m *Listener) MessageReceived(device string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(device).Inc()
}

// SessionFailed records a session ending on error.
func (m *Listener) SessionFailed(device string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(device).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
