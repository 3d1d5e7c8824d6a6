package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "honeypress"

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "Decoy requests by handling outcome (analyzed, whitelisted, crawler).",
	}, []string{"outcome"})

	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detections_total",
		Help:      "Analyzer findings by analyzer name.",
	}, []string{"analyzer"})

	analyzerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyzer_failures_total",
		Help:      "Analyzer invocations skipped after a panic.",
	}, []string{"analyzer"})

	eventsLoggedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_logged_total",
		Help:      "Events persisted to the event log.",
	})

	eventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Detections not persisted, by reason.",
	}, []string{"reason"})

	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Report attempts by result (sent, failed, throttled, refused).",
	}, []string{"result"})

	reportLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_latency_seconds",
		Help:      "Latency of outbound report calls.",
		Buckets:   prometheus.DefBuckets,
	})

	queueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "report_queue_size",
		Help:      "Unsent events observed at the end of the last queue pass.",
	})

	backoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "report_backoff_seconds",
		Help:      "Current reporting backoff delay, 0 when not throttled.",
	})
)

// Request outcomes.
const (
	OutcomeAnalyzed    = "analyzed"
	OutcomeWhitelisted = "whitelisted"
	OutcomeCrawler     = "crawler"
)

// Drop reasons.
const (
	DropRateLimit = "rate_limit"
	DropStorage   = "storage_error"
)

// Report results.
const (
	ReportSent      = "sent"
	ReportFailed    = "failed"
	ReportThrottled = "throttled"
	ReportRefused   = "refused"
)

func RecordRequest(outcome string) {
	requestsTotal.WithLabelValues(outcome).Inc()
}

func RecordDetection(analyzer string) {
	detectionsTotal.WithLabelValues(analyzer).Inc()
}

func RecordAnalyzerFailure(analyzer string) {
	analyzerFailuresTotal.WithLabelValues(analyzer).Inc()
}

func RecordEventLogged() {
	eventsLoggedTotal.Inc()
}

func RecordEventDropped(reason string) {
	eventsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordReport counts one report attempt; seconds is ignored for refusals that made no call.
func RecordReport(result string, seconds float64) {
	reportsTotal.WithLabelValues(result).Inc()
	if result != ReportRefused {
		reportLatency.Observe(seconds)
	}
}

func SetQueueSize(size int64) {
	queueSize.Set(float64(size))
}

func SetBackoff(seconds float64) {
	backoffSeconds.Set(seconds)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
