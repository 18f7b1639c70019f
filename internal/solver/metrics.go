package solver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Negotiations *prometheus.CounterVec
	Reconnects   prometheus.Counter
	Frames       *prometheus.CounterVec
	Connected    prometheus.Gauge
}

// NewMetrics registers the client collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Negotiations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airfoil_client_negotiations_total",
				Help: "Session negotiations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "airfoil_client_reconnects_total",
			Help: "Reconnection attempts scheduled after unclean closes",
		}),
		Frames: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airfoil_client_frames_total",
				Help: "Frames received by type",
			},
			[]string{"type"},
		),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "airfoil_client_connected",
			Help: "1 while a solver stream is open",
		}),
	}
}

func (m *Metrics) negotiation(mode Mode, outcome string) {
	if m == nil {
		return
	}
	m.Negotiations.WithLabelValues(string(mode), outcome).Inc()
}

func (m *Metrics) reconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) frame(kind string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(kind).Inc()
}

func (m *Metrics) connected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
