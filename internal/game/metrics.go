package game

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Race metrics. Labels stay bounded: shape names and nothing per racer.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "race_tick_duration_seconds",
		Help:    "Time spent in one race tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_ticks_total",
		Help: "Ticks applied to a running race",
	})

	activeRacers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "race_active_racers",
		Help: "Racers still on track in the current race",
	})

	lapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "race_laps_total",
		Help: "Completed laps, labelled by the shape rolled for the next lap",
	}, []string{"shape"})

	finishersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_finishers_total",
		Help: "Racers evicted after reaching the lap target",
	})

	racesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_completed_total",
		Help: "Races that reached the Finished state",
	})

	restartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "race_restarts_total",
		Help: "Races discarded by a restart",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "race_event_log_dropped",
		Help: "Events dropped by the event log since start",
	})
)

func recordTick(d time.Duration, active int) {
	tickDuration.Observe(d.Seconds())
	ticksTotal.Inc()
	activeRacers.Set(float64(active))
}
