package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "race_render_duration_seconds",
	Help:    "Time spent rendering a frame",
	Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
})
