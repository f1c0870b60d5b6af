// Package remotestore defines the interface to the remote document
// store the audit-chain subsystem shares with the rest of the product:
// the anchors, govTenants, tenants and government_calls collections.
// In production the store is an external collaborator; BoltStore is a
// full local implementation of the same interface used for local
// operation and tests, and NullStore is a logging no-op for
// deployments with no remote store configured.
package remotestore

import (
	"errors"
	"time"

	"github.com/sentinelgov/auditchain/pkg/types"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("remotestore: document not found")

// GovTenant is the governance-side tenant document.
type GovTenant struct {
	TenantID            string                 `json:"tenant_id"`
	OwnerUID            string                 `json:"owner_uid"`
	Status              types.TenantStatus     `json:"status"`
	OperationalMode     string                 `json:"operational_mode,omitempty"`
	SuspendID           string                 `json:"suspend_id,omitempty"`
	SuspendedAt         *time.Time             `json:"suspended_at,omitempty"`
	SuspendedBy         string                 `json:"suspended_by,omitempty"`
	Reason              string                 `json:"reason,omitempty"`
	ChainStateAtSuspend map[string]interface{} `json:"chain_state_at_suspend,omitempty"`
}

// TenantDoc is the owner-side mirror of the tenant's status.
type TenantDoc struct {
	OwnerUID  string             `json:"owner_uid"`
	TenantID  string             `json:"tenant_id"`
	Status    types.TenantStatus `json:"status"`
	SuspendID string             `json:"suspend_id,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// CallRecord is one voice-agent call in the government_calls
// collection. The suspension engine only ever touches Status and
// SuspendID.
type CallRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Status    string    `json:"status"`
	SuspendID string    `json:"suspend_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Call status values the suspension engine reads and writes.
const (
	CallInProgress        = "in-progress"
	CallTerminatedByAdmin = "terminated_by_admin"
)

// SuspensionBatch is the atomic dual-collection state change of the
// suspension protocol: the govTenants update and the tenants mirror
// must both commit or both fail.
type SuspensionBatch struct {
	GovTenant GovTenant
	Tenant    TenantDoc
}

// RotationRecord is the non-fatal rotation metadata recorded after a
// key rotation.
type RotationRecord struct {
	TenantID     string    `json:"tenant_id"`
	RotatedAt    time.Time `json:"rotated_at"`
	LinesRotated int       `json:"lines_rotated"`
}

// Store is the remote document-store surface the core consumes. The
// engine assumes the store provides atomic per-batch commits and
// monotonic reads on the anchor path.
type Store interface {
	// Anchors, under witnesses/<tenant_id>.
	PutAnchor(anchor *types.Anchor) error
	LatestAnchor(tenantID string) (*types.Anchor, error)
	ListAnchors(tenantID string) ([]*types.Anchor, error)
	// PurgeAnchors deletes every anchor for tenantID in batches no
	// larger than the store's batch limit, then the parent witness
	// doc. It returns how many anchors were deleted.
	PurgeAnchors(tenantID string) (int, error)

	// govTenants / tenants.
	GetGovTenant(tenantID string) (*GovTenant, error)
	PutGovTenant(doc *GovTenant) error
	ApplySuspension(batch SuspensionBatch) error
	MarkDestroyed(tenantID, ownerUID string) error

	// government_calls.
	TerminateInFlightCalls(tenantID, suspendID string) (int, error)

	// Rotation metadata (best-effort bookkeeping).
	RecordRotation(rec RotationRecord) error

	Close() error
}
