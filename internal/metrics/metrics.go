package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garderoba_scans_total",
			Help: "Scan attempts by outcome",
		},
		[]string{"outcome"},
	)

	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garderoba_verifications_total",
			Help: "Security code submissions by outcome",
		},
		[]string{"outcome"},
	)

	AccessRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garderoba_access_requests_total",
			Help: "Access request transitions by resulting status",
		},
		[]string{"status"},
	)

	AdviceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garderoba_advice_requests_total",
			Help: "Styling advice requests by outcome",
		},
		[]string{"outcome"},
	)

	AdviceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "garderoba_advice_duration_seconds",
			Help:    "Time spent waiting on the advice generator",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)

	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garderoba_session_events_total",
			Help: "Session events by kind",
		},
		[]string{"kind"},
	)

	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "garderoba_feed_subscribers",
			Help: "Open change stream connections",
		},
	)
)
