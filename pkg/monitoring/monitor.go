package monitoring

import (
	"strconv"
	"sync"
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
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	EnrollmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_enrollments_total",
			Help: "Committed enrollments by source",
		},
		[]string{"source"},
	)

	PaymentOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_payment_orders_total",
			Help: "Gateway order creation attempts by result",
		},
		[]string{"result"},
	)

	PaymentVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_payment_verifications_total",
			Help: "Payment signature verifications by result",
		},
		[]string{"result"},
	)

	CertificatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_certificates_total",
			Help: "Certificate issuance attempts by result",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			EnrollmentsTotal,
			PaymentOrdersTotal,
			PaymentVerificationsTotal,
			CertificatesTotal,
		)
	})
}

// MetricsMiddleware 按路由模板打标签，未匹配的路径统一记为 unmatched
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
