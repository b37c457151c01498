package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	OrdersFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Number of orders that reached a terminal state",
		},
		[]string{"status"},
	)

	CertificatesRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "certificates_rendered_total",
			Help: "Number of certificate PDFs rendered",
		},
	)

	CoursesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "courses_completed_total",
			Help: "Number of course completion transitions",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(OrdersFinalized)
	prometheus.MustRegister(CertificatesRendered)
	prometheus.MustRegister(CoursesCompleted)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
