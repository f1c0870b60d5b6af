package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramSamples(t *testing.T, h prometheus.Histogram) (count uint64, sum float64) {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

func TestTimerObservesAppendLatency(t *testing.T) {
	// A private histogram with the same shape as AppendDuration, so
	// the test does not depend on what other tests fed the global.
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_append_duration_seconds",
		Help:    "test duplicate of the append latency histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)
	timer.ObserveDuration(h)

	count, sum := histogramSamples(t, h)
	assert.EqualValues(t, 1, count)
	assert.GreaterOrEqual(t, sum, 0.020)
	assert.Less(t, sum, 5.0)
	assert.GreaterOrEqual(t, timer.Duration(), 20*time.Millisecond)
}

func TestEntriesAppendedCountsPerKind(t *testing.T) {
	tool := testutil.ToFloat64(EntriesAppendedTotal.WithLabelValues("TOOL_EXECUTION"))
	pulse := testutil.ToFloat64(EntriesAppendedTotal.WithLabelValues("PULSE"))

	EntriesAppendedTotal.WithLabelValues("TOOL_EXECUTION").Inc()
	EntriesAppendedTotal.WithLabelValues("TOOL_EXECUTION").Inc()
	EntriesAppendedTotal.WithLabelValues("PULSE").Inc()

	assert.Equal(t, tool+2, testutil.ToFloat64(EntriesAppendedTotal.WithLabelValues("TOOL_EXECUTION")))
	assert.Equal(t, pulse+1, testutil.ToFloat64(EntriesAppendedTotal.WithLabelValues("PULSE")))
}

func TestAppendFailureClassesAreIndependent(t *testing.T) {
	critical := testutil.ToFloat64(AppendFailuresTotal.WithLabelValues("critical_integrity_failure"))
	ordinary := testutil.ToFloat64(AppendFailuresTotal.WithLabelValues("audit_write_error"))

	AppendFailuresTotal.WithLabelValues("critical_integrity_failure").Inc()

	assert.Equal(t, critical+1, testutil.ToFloat64(AppendFailuresTotal.WithLabelValues("critical_integrity_failure")))
	assert.Equal(t, ordinary, testutil.ToFloat64(AppendFailuresTotal.WithLabelValues("audit_write_error")))
}

func TestWitnessAnchorOutcomesAreLabelled(t *testing.T) {
	anchored := testutil.ToFloat64(WitnessAnchorsTotal.WithLabelValues("anchored"))
	errored := testutil.ToFloat64(WitnessAnchorsTotal.WithLabelValues("error"))

	WitnessAnchorsTotal.WithLabelValues("anchored").Inc()
	WitnessAnchorsTotal.WithLabelValues("error").Inc()
	WitnessAnchorsTotal.WithLabelValues("anchored").Inc()

	assert.Equal(t, anchored+2, testutil.ToFloat64(WitnessAnchorsTotal.WithLabelValues("anchored")))
	assert.Equal(t, errored+1, testutil.ToFloat64(WitnessAnchorsTotal.WithLabelValues("error")))
}

func TestChainLengthGaugeTracksPerTenant(t *testing.T) {
	ChainLength.WithLabelValues("metrics-test-acme").Set(7)
	ChainLength.WithLabelValues("metrics-test-globex").Set(2)

	assert.Equal(t, 7.0, testutil.ToFloat64(ChainLength.WithLabelValues("metrics-test-acme")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ChainLength.WithLabelValues("metrics-test-globex")))
}

type staticStats struct {
	tenants map[string]uint64
}

func (s staticStats) ListTenants() ([]string, error) {
	var out []string
	for id := range s.tenants {
		out = append(out, id)
	}
	return out, nil
}

func (s staticStats) EntryCount(tenantID string) (uint64, error) {
	return s.tenants[tenantID], nil
}

func TestCollectorSamplesChainGauges(t *testing.T) {
	c := NewCollector(staticStats{tenants: map[string]uint64{
		"collector-test-acme":   4,
		"collector-test-globex": 9,
	}})
	c.collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(TenantsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(ChainLength.WithLabelValues("collector-test-acme")))
	assert.Equal(t, 9.0, testutil.ToFloat64(ChainLength.WithLabelValues("collector-test-globex")))
}
