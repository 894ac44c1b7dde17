package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	conversionDuration *prom.HistogramVec
	invocationDuration prom.Histogram
	conversionResults  *prom.CounterVec
	invocationOutcome  *prom.CounterVec
	modeSelected       *prom.CounterVec
	modeDowngrades     prom.Counter
}

// NewPrometheusRecorder constructs and registers conversion metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		conversionDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "adocbuilder",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of individual backend conversions",
			Buckets:   prom.DefBuckets,
		}, []string{"backend", "result"}),
		invocationDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "adocbuilder",
			Name:      "invocation_duration_seconds",
			Help:      "Total invocation duration",
			Buckets:   prom.DefBuckets,
		}),
		conversionResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "adocbuilder",
			Name:      "conversion_results_total",
			Help:      "Conversion result counts by backend and outcome",
		}, []string{"backend", "result"}),
		invocationOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "adocbuilder",
			Name:      "invocation_outcomes_total",
			Help:      "Invocation outcomes by final status",
		}, []string{"outcome"}),
		modeSelected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "adocbuilder",
			Name:      "execution_mode_selected_total",
			Help:      "Selected execution modes",
		}, []string{"mode"}),
		modeDowngrades: prom.NewCounter(prom.CounterOpts{
			Namespace: "adocbuilder",
			Name:      "execution_mode_downgrades_total",
			Help:      "Count of preferences force-downgraded to forked-process",
		}),
	}
	reg.MustRegister(pr.conversionDuration, pr.invocationDuration, pr.conversionResults,
		pr.invocationOutcome, pr.modeSelected, pr.modeDowngrades)
	return pr
}

func (pr *PrometheusRecorder) ObserveConversionDuration(backend string, d time.Duration, success bool) {
	result := string(ResultSuccess)
	if !success {
		result = string(ResultFailed)
	}
	pr.conversionDuration.WithLabelValues(backend, result).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveInvocationDuration(d time.Duration) {
	pr.invocationDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncConversionResult(backend string, result ResultLabel) {
	pr.conversionResults.WithLabelValues(backend, string(result)).Inc()
}

func (pr *PrometheusRecorder) IncInvocationOutcome(outcome string) {
	pr.invocationOutcome.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) IncModeSelected(mode string) {
	pr.modeSelected.WithLabelValues(mode).Inc()
}

func (pr *PrometheusRecorder) IncModeDowngraded() {
	pr.modeDowngrades.Inc()
}

// HTTPHandler returns an http.Handler serving Prometheus metrics for reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
