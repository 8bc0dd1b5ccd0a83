package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/tether/pkg/stream"
)

// Metrics holds all Prometheus metrics of a worker. It implements
// stream.Observer so cursors and emitters report into it directly.
type Metrics struct {
	// Protocol metrics
	recordsRead     *prometheus.CounterVec
	recordsWritten  *prometheus.CounterVec
	groupsFinished  prometheus.Counter
	queueDepth      *prometheus.GaugeVec
	protocolErrors  prometheus.Counter
	sessionDuration prometheus.Histogram

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

var _ stream.Observer = (*Metrics)(nil)

// NewMetrics creates all metrics and registers them with reg. A nil reg
// means the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		recordsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_records_read_total",
				Help: "Total number of records decoded from the host",
			},
			[]string{"group"},
		),

		recordsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_records_written_total",
				Help: "Total number of records written to the host",
			},
			[]string{"group"},
		),

		groupsFinished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tether_groups_finished_total",
				Help: "Total number of groups terminated in either direction",
			},
		),

		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tether_receiver_queue_depth",
				Help: "Records queued by the co-group receiver and not yet consumed",
			},
			[]string{"group"},
		),

		protocolErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tether_protocol_errors_total",
				Help: "Total number of protocol violations detected",
			},
		),

		sessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tether_session_duration_seconds",
				Help:    "Worker session duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tether_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		gatherer: gatherer,
	}
}

func groupLabel(group uint8) string {
	return strconv.Itoa(int(group))
}

// RecordRead counts a decoded record
func (m *Metrics) RecordRead(group uint8) {
	m.recordsRead.WithLabelValues(groupLabel(group)).Inc()
}

// RecordWritten counts a record written to the channel
func (m *Metrics) RecordWritten(group uint8) {
	m.recordsWritten.WithLabelValues(groupLabel(group)).Inc()
}

// GroupFinished counts a terminated group
func (m *Metrics) GroupFinished(uint8) {
	m.groupsFinished.Inc()
}

// QueueDepth records the receiver queue length for group
func (m *Metrics) QueueDepth(group uint8, depth int) {
	m.queueDepth.WithLabelValues(groupLabel(group)).Set(float64(depth))
}

// ProtocolError counts a protocol violation
func (m *Metrics) ProtocolError(error) {
	m.protocolErrors.Inc()
}

// ObserveSession records the duration of a finished session
func (m *Metrics) ObserveSession(d time.Duration) {
	m.sessionDuration.Observe(d.Seconds())
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
