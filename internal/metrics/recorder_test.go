package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveConversionDuration("html5", time.Second, true)
	r.ObserveInvocationDuration(time.Second)
	r.IncConversionResult("html5", ResultSuccess)
	r.IncInvocationOutcome("success")
	r.IncModeSelected("in_process")
	r.IncModeDowngraded()
}

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncConversionResult("html5", ResultSuccess)
	r.IncConversionResult("html5", ResultSuccess)
	r.IncConversionResult("pdf", ResultFailed)
	r.IncModeDowngraded()
	r.IncModeSelected("forked_process")
	r.ObserveConversionDuration("html5", 250*time.Millisecond, true)
	r.ObserveInvocationDuration(time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["adocbuilder_conversion_results_total"])
	assert.True(t, names["adocbuilder_execution_mode_downgrades_total"])

	assert.InDelta(t, 2, testutil.ToFloat64(r.conversionResults.WithLabelValues("html5", "success")), 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(r.modeDowngrades), 0.0001)
}
