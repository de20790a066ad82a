package devserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the devserver's Prometheus instruments.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StreamClients   prometheus.Gauge
	EventsSent      prometheus.Counter
	WorkflowsRun    prometheus.Counter
}

// NewMetrics registers the devserver metrics on a fresh registry and returns
// both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devserver_requests_total",
			Help: "HTTP requests by method, path, and status.",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devserver_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "devserver_stream_clients",
			Help: "Connected event stream clients.",
		}),
		EventsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "devserver_events_sent_total",
			Help: "Events broadcast over the stream.",
		}),
		WorkflowsRun: factory.NewCounter(prometheus.CounterOpts{
			Name: "devserver_workflows_run_total",
			Help: "Simulated workflows started.",
		}),
	}
	return m, reg
}

// middleware records request counts and latency per route.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}
