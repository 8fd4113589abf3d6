// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	TradesParsed   prometheus.Counter
	ParseWarnings  *prometheus.CounterVec
	SegmentsBuilt  *prometheus.CounterVec
	LabelsIngested prometheus.Counter

	// Backtest metrics
	BacktestsRun     *prometheus.CounterVec
	SegmentsSelected prometheus.Counter
	StreaksFlushed   *prometheus.CounterVec
	Verdicts         *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "modquant_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		TradesParsed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_parsed_total",
			Help:      "Total number of trade records parsed",
		}),
		ParseWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "parse_warnings_total",
			Help:      "Total number of malformed input records skipped, by ledger kind",
		}, []string{"kind"}),
		SegmentsBuilt: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "segments_built_total",
			Help:      "Total number of segments built or read, by segmentation policy",
		}, []string{"segmentation"}),
		LabelsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "labels_ingested_total",
			Help:      "Total number of outcome labels read from label files",
		}),

		BacktestsRun: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtests by stop policy and status",
		}, []string{"stop_policy", "status"}),
		SegmentsSelected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "segments_selected_total",
			Help:      "Total number of segments selected by the follow trigger",
		}),
		StreaksFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "streaks_total",
			Help:      "Total number of follow streaks, by whether the stop condition was reached",
		}, []string{"completed"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "verdicts_total",
			Help:      "Total number of decision verdicts by value",
		}, []string{"verdict"}),

		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by input kind and status",
		}, []string{"input", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"input"}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordTradesParsed adds parsed trades and skipped records.
func RecordTradesParsed(trades, warnings int) {
	DefaultMetrics.TradesParsed.Add(float64(trades))
	DefaultMetrics.ParseWarnings.WithLabelValues("trades").Add(float64(warnings))
}

// RecordParseWarnings counts skipped records of a ledger kind.
func RecordParseWarnings(kind string, n int) {
	DefaultMetrics.ParseWarnings.WithLabelValues(kind).Add(float64(n))
}

// RecordSegmentsBuilt counts segments produced under a segmentation policy.
func RecordSegmentsBuilt(segmentation string, n int) {
	DefaultMetrics.SegmentsBuilt.WithLabelValues(segmentation).Add(float64(n))
}

// RecordLabelsIngested counts labels read from a label file.
func RecordLabelsIngested(n int) {
	DefaultMetrics.LabelsIngested.Add(float64(n))
}

// RecordBacktest records one backtest and the shape of its selection.
func RecordBacktest(stopPolicy, status string, selected, completed, unfinished int) {
	DefaultMetrics.BacktestsRun.WithLabelValues(stopPolicy, status).Inc()
	DefaultMetrics.SegmentsSelected.Add(float64(selected))
	DefaultMetrics.StreaksFlushed.WithLabelValues(strconv.FormatBool(true)).Add(float64(completed))
	DefaultMetrics.StreaksFlushed.WithLabelValues(strconv.FormatBool(false)).Add(float64(unfinished))
}

// RecordVerdict counts a decision verdict.
func RecordVerdict(verdict string) {
	DefaultMetrics.Verdicts.WithLabelValues(verdict).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(input, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(input, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(input).Observe(durationSeconds)
}

// RecordReportGenerated counts a written report.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordHTTPRequest counts a served HTTP request.
func RecordHTTPRequest(method, route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// MarkRunSucceeded sets the last successful run gauge to now (unix seconds).
func MarkRunSucceeded(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulRun.Set(float64(unixSeconds))
}
