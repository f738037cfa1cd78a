package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes counters for the event ingestion pipeline.
type Metrics struct {
	events *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		events: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotient",
			Name:      "processor_events_total",
			Help:      "Processor events ingested, by type and final status.",
		}, []string{"type", "status"}),
	}
}

func (m *Metrics) RecordEvent(eventType string, status string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType, status).Inc()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
