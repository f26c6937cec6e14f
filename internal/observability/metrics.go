package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics records API requests issued by the client. It owns its own
// registry so several clients in one process never collide.
type ClientMetrics struct {
	Registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	uploaded prometheus.Counter
}

func NewClientMetrics() *ClientMetrics {
	m := &ClientMetrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkpost_client_requests_total",
			Help: "Total API requests by operation and status class",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inkpost_client_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		uploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkpost_client_uploaded_bytes_total",
			Help: "Total bytes of image data sent to the API",
		}),
	}
	m.Registry.MustRegister(m.requests, m.latency, m.uploaded)
	return m
}

// ObserveRequest records one finished request. status 0 means the request
// never got a response.
func (m *ClientMetrics) ObserveRequest(operation string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, StatusClass(status)).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *ClientMetrics) AddUploadedBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploaded.Add(float64(n))
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *ClientMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// StatusClass maps 404 to "4xx" and 0 to "error".
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
