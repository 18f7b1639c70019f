package mocksolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	negotiations *prometheus.CounterVec
	frames       *prometheus.CounterVec
	streams      prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		negotiations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mocksolver_negotiations_total",
			Help: "Session negotiations by mode and outcome",
		}, []string{"mode", "outcome"}),
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mocksolver_frames_sent_total",
			Help: "Frames queued to clients by type",
		}, []string{"type"}),
		streams: f.NewGauge(prometheus.GaugeOpts{
			Name: "mocksolver_active_streams",
			Help: "Open result streams",
		}),
	}
}
