package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campsite",
			Name:      "booking_created_total",
			Help:      "Count of reservations created.",
		},
	)

	bookingUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campsite",
			Name:      "booking_updated_total",
			Help:      "Count of reservations updated.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "campsite",
			Name:      "booking_cancelled_total",
			Help:      "Count of reservations cancelled.",
		},
	)

	bookingConflict = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campsite",
			Name:      "booking_conflict_total",
			Help:      "Count of rejected writes by conflict kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "campsite",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by handler.",
		},
		[]string{"handler"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "campsite",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by handler.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingUpdated, bookingCancelled,
			bookingConflict, httpRequests, requestDuration,
		)
	})
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingUpdated() {
	bookingUpdated.Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

// IncBookingConflict counts a rejected write; kind is one of
// "dates", "version" or "serialization".
func IncBookingConflict(kind string) {
	bookingConflict.WithLabelValues(kind).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func ObserveRequestDuration(handler string, seconds float64) {
	requestDuration.WithLabelValues(handler).Observe(seconds)
}
