package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "base44_login_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "base44_register_total",
			Help: "Total number of tenant registrations",
		},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"},
	)

	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	IngestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_ingests_total",
			Help: "Total number of raw ingests by connector type",
		},
		[]string{"connector_type"},
	)

	IngestedRecordsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_ingested_records_total",
			Help: "Total number of records captured by ingestion",
		},
		[]string{"connector_type"},
	)

	KPIEvaluationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_kpi_evaluations_total",
			Help: "Total number of KPI evaluations by calculation method",
		},
		[]string{"method"},
	)

	AlertTriggeredCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_alerts_triggered_total",
			Help: "Total number of alerts created by severity",
		},
		[]string{"severity"},
	)

	AlertTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_alert_transitions_total",
			Help: "Total number of alert state transitions",
		},
		[]string{"transition"},
	)

	ForecastCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "base44_forecasts_total",
			Help: "Total number of forecast runs by model",
		},
		[]string{"model"},
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "base44_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "base44_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	KPIEvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "base44_kpi_evaluation_duration_seconds",
			Help:    "Duration of KPI evaluations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Gauge metrics
var (
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "base44_info",
			Help: "Information about the Base44 backend",
		},
		[]string{"version"},
	)

	ActiveTenantsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "base44_active_tenants",
			Help: "Number of currently active tenants",
		},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(IngestCounter)
	prometheus.MustRegister(IngestedRecordsCounter)
	prometheus.MustRegister(KPIEvaluationCounter)
	prometheus.MustRegister(AlertTriggeredCounter)
	prometheus.MustRegister(AlertTransitionCounter)
	prometheus.MustRegister(ForecastCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(KPIEvaluationDuration)

	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(ActiveTenantsGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication or authorization error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordIngest records one ingest batch and its record count
func RecordIngest(connectorType string, records int) {
	IngestCounter.With(prometheus.Labels{"connector_type": connectorType}).Inc()
	IngestedRecordsCounter.With(prometheus.Labels{"connector_type": connectorType}).Add(float64(records))
}

// RecordKPIEvaluation records one KPI evaluation by calculation method
func RecordKPIEvaluation(method string) {
	KPIEvaluationCounter.With(prometheus.Labels{"method": method}).Inc()
}

// RecordAlertTriggered records one created alert by severity
func RecordAlertTriggered(severity string) {
	AlertTriggeredCounter.With(prometheus.Labels{"severity": severity}).Inc()
}

// RecordAlertTransition records an acknowledge/unacknowledge/resolve transition
func RecordAlertTransition(transition string) {
	AlertTransitionCounter.With(prometheus.Labels{"transition": transition}).Inc()
}

// RecordForecast records one forecast run by model name
func RecordForecast(model string) {
	ForecastCounter.With(prometheus.Labels{"model": model}).Inc()
}

// UpdateActiveTenants updates the active tenants gauge
func UpdateActiveTenants(count int) {
	ActiveTenantsGauge.Set(float64(count))
}
