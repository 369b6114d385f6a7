package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reading_store_writes_total",
		Help: "Record store write calls by operation and outcome",
	}, []string{"op", "result"})

	toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reading_toggles_total",
		Help: "Chapter toggles by outcome",
	}, []string{"result"})

	daysCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reading_days_completed_total",
		Help: "Toggles that completed the current assignment window",
	})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reading_sync_duration_seconds",
		Help:    "Time to apply a bulk sync plan, including the ledger re-fetch",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
	}, []string{"op"})

	syncRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reading_sync_records",
		Help:    "Records written per bulk sync",
		Buckets: []float64{0, 1, 10, 100, 500, 1200},
	})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
