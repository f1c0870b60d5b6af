// Package audit is the caller-facing façade for writing chain entries.
// It attaches actor identity, picks the entry kind and receipt prefix,
// enforces the suspension and RAIO gates, and performs the dual write
// (target-tenant chain plus the process-wide admin activity mirror)
// admin access requires.
package audit

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/sentinelgov/auditchain/pkg/chainstore"
	"github.com/sentinelgov/auditchain/pkg/governance"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// TenantStatusProvider resolves a tenant's lifecycle status. The
// suspension engine provides the production implementation backed by
// the remote store; tests supply fakes.
type TenantStatusProvider interface {
	TenantStatus(tenantID string) (types.TenantStatus, error)
}

// RaioGate is the subset of pkg/governance.Ledger the tool-execution
// path consults.
type RaioGate interface {
	IsRaioAuthorized(tenantID string) (*governance.Authorization, error)
}

// Logger is the façade. Status and Raio are optional: a nil Status
// skips the suspension gate (single-tenant tooling), a nil Raio skips
// the 30-day check-in gate (callers that gate at a higher layer).
type Logger struct {
	Chain  *chainstore.Store
	Status TenantStatusProvider
	Raio   RaioGate

	adminMu sync.Mutex
}

// New creates a Logger over chain.
func New(chain *chainstore.Store, status TenantStatusProvider, raio RaioGate) *Logger {
	return &Logger{Chain: chain, Status: status, Raio: raio}
}

// AdminLogPath is the process-wide admin activity mirror file.
func (l *Logger) AdminLogPath() string {
	return filepath.Join(l.Chain.Root, "admin_access.log")
}

// ToolExecutionRequest carries everything a TOOL_EXECUTION entry
// records about one AI tool call.
type ToolExecutionRequest struct {
	TenantID           string
	AgentNHI           string
	ToolName           string
	ToolArguments      map[string]interface{}
	PolicySnapshotHash string
	ExecutionStatus    types.ExecutionStatus
	ExecutionResult    map[string]interface{}
	ExternalCallID     string
}

// WriteToolExecution appends a TOOL_EXECUTION entry for the tenant,
// after the suspension and RAIO gates. On any error the caller must
// withhold the tool's result: a failed audit write never yields an
// implied success.
func (l *Logger) WriteToolExecution(req ToolExecutionRequest) (*types.Entry, error) {
	if err := l.checkWritable(req.TenantID); err != nil {
		return nil, err
	}

	if l.Raio != nil {
		auth, err := l.Raio.IsRaioAuthorized(req.TenantID)
		if err != nil {
			return nil, fmt.Errorf("audit: RAIO authorization check: %w", err)
		}
		if !auth.Authorized {
			return nil, fmt.Errorf("%w: %s", ErrRaioNotAuthorized, auth.Verdict)
		}
	}

	return l.append(req.TenantID, types.Entry{
		Kind:               types.KindToolExecution,
		AgentNHI:           req.AgentNHI,
		ToolName:           req.ToolName,
		ToolArguments:      req.ToolArguments,
		PolicySnapshotHash: req.PolicySnapshotHash,
		ExecutionStatus:    req.ExecutionStatus,
		ExecutionResult:    req.ExecutionResult,
		ExternalCallID:     req.ExternalCallID,
	})
}

// WritePulse appends a PULSE entry carrying the process-wide pulse
// sequence. Pulses are written even for suspended tenants: the uptime
// record is part of the evidence trail, not a tenant-initiated write.
func (l *Logger) WritePulse(tenantID string, sequence uint64, processID string) (*types.Entry, error) {
	entry, err := l.append(tenantID, types.Entry{
		Kind:          types.KindPulse,
		PulseSequence: sequence,
		ProcessID:     processID,
	})
	if err == nil {
		metrics.PulsesTotal.Inc()
	}
	return entry, err
}

// WriteSystemRecovery appends a SYSTEM_RECOVERY entry describing a
// detected pulse gap.
func (l *Logger) WriteSystemRecovery(tenantID string, sequence uint64, processID, gapDuration, gapReason string) (*types.Entry, error) {
	entry, err := l.append(tenantID, types.Entry{
		Kind:          types.KindSystemRecovery,
		PulseSequence: sequence,
		ProcessID:     processID,
		GapDuration:   gapDuration,
		GapReason:     gapReason,
	})
	if err == nil {
		metrics.SystemRecoveriesTotal.Inc()
	}
	return entry, err
}

// WriteRaioCheckin mirrors a completed RAIO check-in into the tenant's
// own hash chain, so the chain itself can be witnessed as evidence of
// the check-in alongside the governance ledger file.
func (l *Logger) WriteRaioCheckin(tenantID string, rec types.GovernanceRecord) (*types.Entry, error) {
	if err := l.checkWritable(tenantID); err != nil {
		return nil, err
	}
	return l.append(tenantID, types.Entry{
		Kind:               types.KindRaioCheckin,
		RaioUserID:         rec.RaioUserID,
		DigitalFingerprint: rec.DigitalFingerprint,
		MerkleRootSnapshot: rec.MerkleRootSnapshot,
	})
}

// WriteSuspendShield appends the AUDIT_SHIELD entry the suspension
// engine writes in its final phase. It bypasses the suspension gate:
// by this point the tenant's status is already suspended, and the
// entry documenting that fact must still land on the chain.
func (l *Logger) WriteSuspendShield(tenantID string, e types.Entry) (*types.Entry, error) {
	e.Kind = types.KindAdminAccess
	return l.append(tenantID, e)
}

func (l *Logger) checkWritable(tenantID string) error {
	if l.Status == nil {
		return nil
	}
	status, err := l.Status.TenantStatus(tenantID)
	if err != nil {
		return fmt.Errorf("audit: resolve tenant status: %w", err)
	}
	switch status {
	case types.TenantSuspended:
		return ErrTenantSuspended
	case types.TenantDestroyed:
		return ErrTenantDestroyed
	}
	return nil
}

func (l *Logger) append(tenantID string, payload types.Entry) (*types.Entry, error) {
	timer := metrics.NewTimer()
	entry, err := l.Chain.Append(tenantID, payload)
	if err != nil {
		metrics.AppendFailuresTotal.WithLabelValues(failureClass(err)).Inc()
		return nil, err
	}
	timer.ObserveDuration(metrics.AppendDuration)
	metrics.EntriesAppendedTotal.WithLabelValues(string(entry.Kind)).Inc()
	return entry, nil
}

func failureClass(err error) string {
	switch {
	case errors.Is(err, chainstore.ErrCriticalIntegrityFailure):
		return "critical_integrity_failure"
	case errors.Is(err, chainstore.ErrEncryptionKeyMissing):
		return "encryption_key_missing"
	case errors.Is(err, chainstore.ErrTenantDestroyed):
		return "tenant_destroyed"
	default:
		return "audit_write_error"
	}
}
