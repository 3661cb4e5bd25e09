package broadcast

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Outcome string

const (
	OutcomeForwarded    Outcome = "forwarded"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeNoCapability Outcome = "no_capability"
	OutcomeFailed       Outcome = "failed"
)

// Metrics cuenta qué hizo el broadcaster con cada evento, etiquetado por el
// patrón que lo aceptó. Un *Metrics nil es válido y no registra nada.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "echopbx_broadcast_events_total",
				Help: "Kernel events seen by the broadcaster, by outcome",
			},
			[]string{"pattern", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "echopbx_broadcast_invoke_duration_seconds",
				Help:    "Time spent inside the broadcast capability",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"capability"},
		),
	}
}

// observe recibe el patrón, nunca el nombre del evento: con comodines los
// nombres no están acotados. Los descartados van con pattern vacío.
func (m *Metrics) observe(pattern string, o Outcome) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(pattern, string(o)).Inc()
}

func (m *Metrics) observeInvoke(capability string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(capability).Observe(d.Seconds())
}
