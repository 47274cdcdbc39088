package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_snapshot_rows_total",
			Help: "Total curve points melted from snapshot files",
		},
		[]string{"dataset"},
	)

	SnapshotDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_snapshot_drops_total",
			Help: "Total snapshot drops fetched from the feed",
		},
		[]string{"status"},
	)

	ForecastJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_forecast_jobs_total",
			Help: "Total batch forecast jobs by terminal status",
		},
		[]string{"status"},
	)

	ModelFitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatcast_model_fit_seconds",
			Help:    "Model fit duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	NarrativeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_narrative_requests_total",
			Help: "Total narrative generation attempts",
		},
		[]string{"status"},
	)

	NarrativeCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_narrative_cache_total",
			Help: "Narrative cache lookups",
		},
		[]string{"result"},
	)

	FTPFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatcast_ftp_fetches_total",
			Help: "FTP drop sync attempts by outcome",
		},
		[]string{"status"},
	)
)
