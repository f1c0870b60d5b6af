// Package metrics provides Prometheus metrics collection and
// exposition for the audit-chain subsystem: append throughput and
// latency, chain lengths, integrity verification outcomes, witness
// anchor runs, pulse continuity and the tenant lifecycle operations
// (suspension, key rotation, sovereign exit). All metrics register
// against the default registry at package init and are exposed via
// Handler for scraping; the package also carries the process health
// and readiness endpoints the daemon serves next to /metrics.
package metrics
