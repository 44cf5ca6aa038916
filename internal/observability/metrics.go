// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deployment outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Deployment metrics
	DeploymentsTotal   *prometheus.CounterVec
	DeployDuration     *prometheus.HistogramVec
	ConfirmationWait   prometheus.Histogram
	MigrationRunsTotal *prometheus.CounterVec

	// Ethereum client metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec
	HeadsReceived  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_deploy"
	}
	factory := promauto.With(reg)

	return &Metrics{
		DeploymentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deployer",
			Name:      "deployments_total",
			Help:      "Total number of contract deployments by artifact and status",
		}, []string{"artifact", "status"}),
		DeployDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deployer",
			Name:      "deploy_duration_seconds",
			Help:      "Time from send to confirmed receipt in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 15, 30, 60, 120, 300},
		}, []string{"artifact"}),
		ConfirmationWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "deployer",
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for block confirmations after the receipt",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120},
		}),
		MigrationRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "runs_total",
			Help:      "Total number of migration runs by network and status",
		}, []string{"network", "status"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Ethereum JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Ethereum JSON-RPC calls",
		}, []string{"method"}),
		HeadsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "heads_received_total",
			Help:      "Total number of newHeads notifications received",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordDeployment records the outcome and duration of one deploy call.
func RecordDeployment(artifact string, seconds float64, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	DefaultMetrics.DeploymentsTotal.WithLabelValues(artifact, status).Inc()
	if err == nil {
		DefaultMetrics.DeployDuration.WithLabelValues(artifact).Observe(seconds)
	}
}

// RecordConfirmationWait records time spent waiting for confirmations.
func RecordConfirmationWait(seconds float64) {
	DefaultMetrics.ConfirmationWait.Observe(seconds)
}

// RecordMigrationRun records a finished migration run.
func RecordMigrationRun(network string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	DefaultMetrics.MigrationRunsTotal.WithLabelValues(network, status).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordHead increments the newHeads counter.
func RecordHead() {
	DefaultMetrics.HeadsReceived.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
