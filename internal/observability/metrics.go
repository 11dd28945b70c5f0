package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FormSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transfer_booking", Name: "form_submissions_total", Help: "Booking form submissions by outcome"},
		[]string{"outcome"},
	)
	DropOffRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transfer_booking", Name: "dropoff_rejections_total", Help: "Drop-off candidates rejected by the radius gate"},
		[]string{"reason"},
	)
	DrivingDistanceKm = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "transfer_booking",
		Name:      "driving_distance_km",
		Help:      "Driving distance of drop-off candidates",
		Buckets:   []float64{10, 25, 50, 70, 100, 150, 200, 300},
	})
	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transfer_booking", Name: "confirmations_total", Help: "Confirmation attempts by payment path and outcome"},
		[]string{"path", "outcome"},
	)
	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "transfer_booking", Name: "active_sessions", Help: "Live form sessions and page loads"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "transfer_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "transfer_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
