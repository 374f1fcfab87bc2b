// Package metrics exposes the agent's Prometheus series. All methods accept
// a nil receiver so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"prime/internal/domain"
)

type Metrics struct {
	// Tick loop
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	// Decisions
	Decisions         *prometheus.CounterVec
	DecisionIntensity prometheus.Histogram

	// Drive vector, one series per drive
	Drives *prometheus.GaugeVec

	// Collaborators (memory, expression, publisher)
	CollaboratorFailures *prometheus.CounterVec

	// Sensory ingestion
	SensoryUpdates *prometheus.CounterVec
	SensoryDropped prometheus.Counter
	SensorsOnline  prometheus.Gauge
}

// New registers every series on reg. Pass prometheus.NewRegistry() in tests
// to avoid collisions with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "prime_ticks_total",
			Help: "Total number of completed ticks",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "prime_tick_duration_seconds",
			Help:    "Wall time of one tick including collaborator calls",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_decisions_total",
			Help: "Decisions taken by kind",
		}, []string{"kind"}),
		DecisionIntensity: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "prime_decision_intensity",
			Help:    "Intensity of the selected decision",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		Drives: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "prime_drive",
			Help: "Current value of each emotional drive",
		}, []string{"drive"}),
		CollaboratorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_collaborator_failures_total",
			Help: "Degraded collaborator calls by collaborator",
		}, []string{"collaborator"}),
		SensoryUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prime_sensory_updates_total",
			Help: "Sensory updates processed by field and result",
		}, []string{"field", "result"}),
		SensoryDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "prime_sensory_dropped_total",
			Help: "Sensory updates dropped because the queue was full",
		}),
		SensorsOnline: f.NewGauge(prometheus.GaugeOpts{
			Name: "prime_sensors_online",
			Help: "Sensor nodes currently online",
		}),
	}
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveDecision(d domain.Decision) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(string(d.Kind)).Inc()
	m.DecisionIntensity.Observe(d.Intensity)
}

func (m *Metrics) SetDrives(s domain.EmotionalState) {
	if m == nil {
		return
	}
	m.Drives.WithLabelValues("energy").Set(s.Energy)
	m.Drives.WithLabelValues("curiosity").Set(s.Curiosity)
	m.Drives.WithLabelValues("social_need").Set(s.SocialNeed)
	m.Drives.WithLabelValues("irritation").Set(s.Irritation)
	m.Drives.WithLabelValues("attachment").Set(s.Attachment)
}

func (m *Metrics) CollaboratorFailed(name string) {
	if m == nil {
		return
	}
	m.CollaboratorFailures.WithLabelValues(name).Inc()
}

func (m *Metrics) SensoryApplied(field domain.SensoryField, ok bool) {
	if m == nil {
		return
	}
	result := "applied"
	if !ok {
		result = "ignored"
	}
	m.SensoryUpdates.WithLabelValues(string(field), result).Inc()
}

func (m *Metrics) SensoryDrop() {
	if m == nil {
		return
	}
	m.SensoryDropped.Inc()
}

func (m *Metrics) SetSensorsOnline(n int) {
	if m == nil {
		return
	}
	m.SensorsOnline.Set(float64(n))
}
