package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "path", "status"},
	)

	registerReadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "register_reads_total",
			Help: "Total register read operations",
		},
		[]string{"result"},
	)

	registerWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "register_writes_total",
			Help: "Total register write operations",
		},
		[]string{"result"},
	)

	authRateLimitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rate_limit_total",
			Help: "Total auth rate limit blocks",
		},
		[]string{"path"},
	)

	auditLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_log_failures_total",
			Help: "Total register access audit entries that failed to persist",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		registerReadsTotal,
		registerWritesTotal,
		authRateLimitTotal,
		auditLogFailuresTotal,
	)
}

func ObserveHTTP(method, path, status string) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func ObserveHTTPDuration(method, path, status string, seconds float64) {
	httpRequestDurationSeconds.WithLabelValues(method, path, status).Observe(seconds)
}

func RegisterRead(result string) {
	registerReadsTotal.WithLabelValues(result).Inc()
}

func RegisterWrite(result string) {
	registerWritesTotal.WithLabelValues(result).Inc()
}

func AuthRateLimited(path string) {
	authRateLimitTotal.WithLabelValues(path).Inc()
}

func AuditLogFailed() {
	auditLogFailuresTotal.Inc()
}
