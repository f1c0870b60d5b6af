package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chain metrics
	EntriesAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_appended_total",
			Help: "Total number of chain entries appended by kind",
		},
		[]string{"kind"},
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_append_duration_seconds",
			Help:    "Time taken to durably append one chain entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AppendFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_append_failures_total",
			Help: "Total number of failed appends by failure class",
		},
		[]string{"class"},
	)

	ChainLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audit_chain_length",
			Help: "Current number of entries in each tenant's chain",
		},
		[]string{"tenant_id"},
	)

	TenantsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_tenants_total",
			Help: "Total number of tenant silos on disk",
		},
	)

	// Verification metrics
	VerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_verify_duration_seconds",
			Help:    "Time taken for a full-chain integrity walk in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	VerifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_verify_failures_total",
			Help: "Total number of integrity verifications that found a broken chain",
		},
	)

	// Witness metrics
	WitnessAnchorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_witness_anchors_total",
			Help: "Total number of witness anchor attempts by outcome",
		},
		[]string{"status"},
	)

	WitnessRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_witness_run_duration_seconds",
			Help:    "Duration of one anchor-all-tenants run in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	// Pulse metrics
	PulsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_pulses_total",
			Help: "Total number of PULSE entries written",
		},
	)

	SystemRecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_system_recoveries_total",
			Help: "Total number of SYSTEM_RECOVERY entries written after a detected gap",
		},
	)

	ClockRegressionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_clock_regressions_total",
			Help: "Total number of appends that applied the previous-plus-1ms timestamp rule",
		},
	)

	// Governance and lifecycle metrics
	AdminAccessTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_admin_access_total",
			Help: "Total number of admin access entries by action",
		},
		[]string{"action"},
	)

	SuspensionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_suspensions_total",
			Help: "Total number of completed tenant suspensions",
		},
	)

	KeyRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_key_rotations_total",
			Help: "Total number of completed tenant key rotations",
		},
	)

	SovereignExitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_sovereign_exits_total",
			Help: "Total number of completed sovereign exits",
		},
	)

	SovereignExitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_sovereign_exit_duration_seconds",
			Help:    "End-to-end sovereign exit duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EntriesAppendedTotal)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(AppendFailuresTotal)
	prometheus.MustRegister(ChainLength)
	prometheus.MustRegister(TenantsTotal)
	prometheus.MustRegister(VerifyDuration)
	prometheus.MustRegister(VerifyFailuresTotal)
	prometheus.MustRegister(WitnessAnchorsTotal)
	prometheus.MustRegister(WitnessRunDuration)
	prometheus.MustRegister(PulsesTotal)
	prometheus.MustRegister(SystemRecoveriesTotal)
	prometheus.MustRegister(ClockRegressionsTotal)
	prometheus.MustRegister(AdminAccessTotal)
	prometheus.MustRegister(SuspensionsTotal)
	prometheus.MustRegister(KeyRotationsTotal)
	prometheus.MustRegister(SovereignExitsTotal)
	prometheus.MustRegister(SovereignExitDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
