package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess    = "success"
	resultFetchError = "fetch_error"
	resultStoreError = "store_error"
)

var (
	progressGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytfeed_refresh_progress_percent",
		Help: "Percentage of subscribed channels processed by the running refresh",
	})
	refreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytfeed_refresh_runs_total",
		Help: "Finished feed refreshes by result",
	}, []string{"result"})
	feedVideos = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytfeed_feed_videos",
		Help: "Number of videos in the last saved feed",
	})
	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ytfeed_refresh_duration_seconds",
		Help:    "Duration of successful feed refreshes",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)
