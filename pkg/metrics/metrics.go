package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Booking related metrics
	BookingsTotal   *prometheus.CounterVec
	BookingLatency  prometheus.Histogram
	BookingFailures *prometheus.CounterVec

	// Queue related metrics
	QueueTransitions  *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	WaitTimeRecalcs   prometheus.Counter
	RecalcBatchSize   prometheus.Histogram
	ReorderOperations prometheus.Counter

	// Event publishing metrics
	EventsPublished      *prometheus.CounterVec
	EventPublishFailures *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		BookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bookings_total",
			Help:      "Total number of appointment bookings by type",
		}, []string{"type", "emergency"}),
		BookingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_duration_seconds",
			Help:      "Time spent booking an appointment",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		BookingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "booking_failures_total",
			Help:      "Total number of rejected bookings by reason",
		}, []string{"reason"}),
		QueueTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_transitions_total",
			Help:      "Total number of queue state transitions",
		}, []string{"transition"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_depth",
			Help:      "Number of waiting entries per provider",
		}, []string{"provider_id"}),
		WaitTimeRecalcs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "wait_time_recalcs_total",
			Help:      "Total number of wait time recalculations",
		}),
		RecalcBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "wait_time_recalc_batch_size",
			Help:      "Number of entries rewritten per recalculation",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		ReorderOperations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_reorders_total",
			Help:      "Total number of queue reorder operations",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Total number of domain events published",
		}, []string{"topic"}),
		EventPublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "event_publish_failures_total",
			Help:      "Total number of failed event publishes",
		}, []string{"topic"}),
	}
}
