// Package metrics exposes call session lifecycle measurements to Prometheus.
package metrics

import (
	"net/http"

	"github.com/DuckBuck-Studios/DuckBuck-AI-Walkie-Talkie-sub006/internal/services/callsession/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var trackedStates = []domain.State{domain.StateJoining, domain.StateActive, domain.StateEnding}

// Metrics holds the call session collectors.
type Metrics struct {
	registry *prometheus.Registry

	triggers         *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	sessionState     *prometheus.GaugeVec
	recoveries       *prometheus.CounterVec
	uiSurfaces       prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callsession_triggers_total",
			Help: "The total number of triggers handled, by outcome.",
		}, []string{"outcome"}),
		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callsession_sessions_finished_total",
			Help: "The total number of sessions that reached Ended, by reason.",
		}, []string{"reason"}),
		sessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callsession_session_state",
			Help: "1 for the state the in-flight session is in, 0 otherwise.",
		}, []string{"state"}),
		recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "callsession_recoveries_total",
			Help: "The total number of recovery passes, by outcome.",
		}, []string{"outcome"}),
		uiSurfaces: factory.NewGauge(prometheus.GaugeOpts{
			Name: "callsession_ui_surfaces_attached",
			Help: "The current number of attached presentation surfaces.",
		}),
	}
}

// TriggerHandled counts one trigger outcome.
func (m *Metrics) TriggerHandled(outcome string) {
	m.triggers.WithLabelValues(outcome).Inc()
}

// SessionFinished counts one session ending.
func (m *Metrics) SessionFinished(reason string) {
	m.sessionsFinished.WithLabelValues(reason).Inc()
}

// StateChanged sets the state gauge; Ended clears it.
func (m *Metrics) StateChanged(state domain.State) {
	for _, tracked := range trackedStates {
		value := 0.0
		if tracked == state {
			value = 1
		}
		m.sessionState.WithLabelValues(tracked.String()).Set(value)
	}
}

// RecoveryCompleted counts one recovery outcome.
func (m *Metrics) RecoveryCompleted(outcome string) {
	m.recoveries.WithLabelValues(outcome).Inc()
}

// SurfaceAttached increments the attached surface gauge.
func (m *Metrics) SurfaceAttached() {
	m.uiSurfaces.Inc()
}

// SurfaceDetached decrements the attached surface gauge.
func (m *Metrics) SurfaceDetached() {
	m.uiSurfaces.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
