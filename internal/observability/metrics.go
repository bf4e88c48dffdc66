package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PositionUploadsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_companion", Name: "position_uploads_total", Help: "Position upload attempts"})
	PositionUploadFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_companion", Name: "position_upload_failures_total", Help: "Failed position uploads"})
	PresencePollsTotal     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_companion", Name: "presence_polls_total", Help: "Roster fetch attempts"})
	PresencePollFailures   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_companion", Name: "presence_poll_failures_total", Help: "Failed roster fetches"})
	AlertsActive           = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_companion", Name: "alerts_active", Help: "Alerts currently visible"})
	AnomaliesTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_companion", Name: "anomalies_total", Help: "Stale-member anomalies detected"})

	MarkerOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_companion", Name: "marker_ops_total", Help: "Marker reconciliation operations"},
		[]string{"op"},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_companion", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_companion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
