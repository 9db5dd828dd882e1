package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScheduleFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlaundry_schedule_fetch_total",
			Help: "Total OpenEI rate schedule fetches",
		},
		[]string{"status"},
	)

	ScheduleFetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartlaundry_schedule_fetch_latency_seconds",
			Help:    "OpenEI rate schedule fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GeocodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlaundry_geocode_total",
			Help: "Total geocoding lookups",
		},
		[]string{"status"},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartlaundry_refresh_total",
			Help: "Advice recomputations started, by trigger",
		},
		[]string{"trigger"},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartlaundry_stale_results_discarded_total",
			Help: "Completed computations dropped because a newer trigger started",
		},
	)

	CurrentPrice = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartlaundry_current_price_per_kwh",
			Help: "Electricity price in effect for the selected location",
		},
	)
)
