package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the booking engine.
type Metrics struct {
	BookingsAdmitted  prometheus.Counter
	BookingsRejected  *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	CascadeRows       *prometheus.CounterVec
	AuditAppends      prometheus.Counter
	AdmissionDuration prometheus.Histogram
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		BookingsAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govbook_bookings_admitted_total",
			Help: "Appointments granted a seat on a time slot",
		}),
		BookingsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govbook_bookings_rejected_total",
			Help: "Booking requests rejected, by reason",
		}, []string{"reason"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govbook_appointment_transitions_total",
			Help: "Appointment status transitions applied, by destination status",
		}, []string{"status"}),
		CascadeRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govbook_cascade_rows_total",
			Help: "Rows touched by cascade propagation, by parent entity kind",
		}, []string{"kind"}),
		AuditAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govbook_audit_appends_total",
			Help: "Audit entries appended",
		}),
		AdmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "govbook_admission_duration_seconds",
			Help:    "Wall time of booking admission transactions",
			Buckets: prometheus.DefBuckets,
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govbook_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
