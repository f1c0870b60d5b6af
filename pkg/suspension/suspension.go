// Package suspension implements the five-phase emergency suspension
// protocol: validate, capture chain state, atomic dual-collection
// status change, best-effort in-flight call termination, and the
// AUDIT_SHIELD chain write with a deterministic event hash. It also
// provides the TenantStatusProvider the audit façade gates on.
package suspension

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgov/auditchain/pkg/audit"
	"github.com/sentinelgov/auditchain/pkg/canon"
	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// Confirmation is the exact string the HTTP collaborator requires in a
// suspend request body when a confirmation is present.
const Confirmation = "SUSPEND ALL AI OPERATIONS"

var (
	// ErrAlreadySuspended makes a repeat suspend idempotent within one
	// status transition (409 at the wire).
	ErrAlreadySuspended = errors.New("suspension: tenant already suspended")

	// ErrTenantDestroyed refuses suspension of a destroyed tenant.
	ErrTenantDestroyed = errors.New("suspension: tenant has been destroyed")

	// ErrCriticalIntegrityFailure is returned when the pre-suspension
	// chain capture finds a broken chain. The engine promotes this, per
	// the verifier's contract: suspension must not proceed over a chain
	// that cannot serve as evidence.
	ErrCriticalIntegrityFailure = errors.New("suspension: chain failed integrity check at suspension time")
)

// Receipt is returned to the caller of Suspend.
type Receipt struct {
	SuspendID   string    `json:"suspend_id"`
	TenantID    string    `json:"tenant_id"`
	EventHash   string    `json:"event_hash"`
	ReceiptID   string    `json:"receipt_id"`
	SuspendedAt time.Time `json:"suspended_at"`
	SuspendedBy string    `json:"suspended_by"`
	CallsEnded  int       `json:"calls_terminated"`
}

// Engine executes suspensions.
type Engine struct {
	Verifier *integrity.Verifier
	Remote   remotestore.Store
	Logger   *audit.Logger
}

// New creates an Engine.
func New(verifier *integrity.Verifier, remote remotestore.Store, logger *audit.Logger) *Engine {
	return &Engine{Verifier: verifier, Remote: remote, Logger: logger}
}

// TenantStatus implements audit.TenantStatusProvider from the
// govTenants collection. A tenant with no document is treated as
// active: provisioning creates the document, and the gate must not
// block tenants that predate it.
func (e *Engine) TenantStatus(tenantID string) (types.TenantStatus, error) {
	doc, err := e.Remote.GetGovTenant(tenantID)
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return types.TenantActive, nil
		}
		return "", fmt.Errorf("suspension: fetch tenant status: %w", err)
	}
	if doc.Status == "" {
		return types.TenantActive, nil
	}
	return doc.Status, nil
}

// IsSuspendedOrDestroyed implements pkg/keys.StatusChecker so key
// rotation refuses suspended and destroyed tenants.
func (e *Engine) IsSuspendedOrDestroyed(tenantID string) bool {
	status, err := e.TenantStatus(tenantID)
	if err != nil {
		// Unresolvable status fails closed for a destructive operation.
		return true
	}
	return status == types.TenantSuspended || status == types.TenantDestroyed
}

// Suspend runs the five-phase protocol for tenantID. reason is the
// operator-supplied cause; actor identifies who pulled the glass-break
// handle.
func (e *Engine) Suspend(tenantID, reason, actor string) (*Receipt, error) {
	// Phase 1: validate current status. The caller has already
	// resolved the tenant; the engine only refuses bad transitions.
	status, err := e.TenantStatus(tenantID)
	if err != nil {
		return nil, err
	}
	switch status {
	case types.TenantSuspended:
		return nil, ErrAlreadySuspended
	case types.TenantDestroyed:
		return nil, ErrTenantDestroyed
	}

	// Phase 2: capture chain state before any mutation.
	report, err := e.Verifier.Verify(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCriticalIntegrityFailure, err)
	}
	if !report.Valid {
		metrics.VerifyFailuresTotal.Inc()
		return nil, fmt.Errorf("%w: %s", ErrCriticalIntegrityFailure, report.BreakDetail)
	}

	suspendID := "SUSPEND-" + uuid.NewString()
	now := time.Now().UTC()
	chainState := map[string]interface{}{
		"chain_head_hash":  report.ChainHeadHash,
		"total_entries":    report.TotalEntries,
		"verified_entries": report.VerifiedEntries,
		"checked_at":       report.CheckedAt.Format(time.RFC3339Nano),
	}

	// Phase 3: atomic dual-collection state change.
	var ownerUID string
	if doc, derr := e.Remote.GetGovTenant(tenantID); derr == nil {
		ownerUID = doc.OwnerUID
	}
	batch := remotestore.SuspensionBatch{
		GovTenant: remotestore.GovTenant{
			TenantID:            tenantID,
			OwnerUID:            ownerUID,
			Status:              types.TenantSuspended,
			OperationalMode:     "OFFLINE",
			SuspendID:           suspendID,
			SuspendedAt:         &now,
			SuspendedBy:         actor,
			Reason:              reason,
			ChainStateAtSuspend: chainState,
		},
		Tenant: remotestore.TenantDoc{
			OwnerUID:  ownerUID,
			TenantID:  tenantID,
			Status:    types.TenantSuspended,
			SuspendID: suspendID,
			UpdatedAt: now,
		},
	}
	if err := e.Remote.ApplySuspension(batch); err != nil {
		return nil, fmt.Errorf("suspension: dual-collection state change: %w", err)
	}

	// Phase 4: terminate in-flight calls. Best-effort.
	tenantLog := log.WithTenant(tenantID)
	callsEnded, err := e.Remote.TerminateInFlightCalls(tenantID, suspendID)
	if err != nil {
		tenantLog.Error().Err(err).
			Str("suspend_id", suspendID).
			Msg("failed to terminate in-flight calls during suspension")
	}

	// Phase 5: chain write + deterministic event hash.
	eventHash, err := canon.SHA256Hex(map[string]interface{}{
		"suspend_id":   suspendID,
		"tenant_id":    tenantID,
		"reason":       reason,
		"suspended_by": actor,
		"suspended_at": now.Format(time.RFC3339Nano),
		"chain_state":  chainState,
	})
	if err != nil {
		return nil, fmt.Errorf("suspension: compute event hash: %w", err)
	}

	entry, err := e.Logger.WriteSuspendShield(tenantID, types.Entry{
		AdminEmail: actor,
		Action:     types.AdminActionView,
		Purpose:    "EMERGENCY_GLASS_BREAK: " + reason,
		SuspendID:  suspendID,
		Reason:     reason,
		Actor:      actor,
		EventHash:  eventHash,
	})
	if err != nil {
		return nil, fmt.Errorf("suspension: write AUDIT_SHIELD entry: %w", err)
	}

	metrics.SuspensionsTotal.Inc()
	tenantLog.Warn().
		Str("suspend_id", suspendID).
		Str("actor", actor).
		Int("calls_terminated", callsEnded).
		Msg("tenant suspended")

	return &Receipt{
		SuspendID:   suspendID,
		TenantID:    tenantID,
		EventHash:   eventHash,
		ReceiptID:   entry.ReceiptID,
		SuspendedAt: now,
		SuspendedBy: actor,
		CallsEnded:  callsEnded,
	}, nil
}
