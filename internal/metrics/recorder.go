package metrics

import "time"

// ResultLabel enumerates conversion result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// Recorder defines observability hooks for conversion metrics. Implementations
// may forward to Prometheus, OpenTelemetry, etc. The NoopRecorder allows
// optional injection without nil checks at call sites.
type Recorder interface {
	ObserveConversionDuration(backend string, d time.Duration, success bool)
	ObserveInvocationDuration(d time.Duration)
	IncConversionResult(backend string, result ResultLabel)
	IncInvocationOutcome(outcome string) // outcome: success|failed
	IncModeSelected(mode string)
	IncModeDowngraded()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveConversionDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveInvocationDuration(time.Duration)               {}
func (NoopRecorder) IncConversionResult(string, ResultLabel)               {}
func (NoopRecorder) IncInvocationOutcome(string)                           {}
func (NoopRecorder) IncModeSelected(string)                                {}
func (NoopRecorder) IncModeDowngraded()                                    {}
