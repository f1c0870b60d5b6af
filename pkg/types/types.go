// Package types defines the shared data model for the audit-chain
// subsystem: chain entries, tenants, anchors, tombstones and the
// deletion certificate returned by sovereign exit.
package types

import "time"

// EntryKind is the closed set of chain entry kinds. Every persisted
// entry carries exactly one.
type EntryKind string

const (
	KindToolExecution  EntryKind = "TOOL_EXECUTION"
	KindAdminAccess    EntryKind = "ADMIN_ACCESS" // aka AUDIT_SHIELD
	KindPulse          EntryKind = "PULSE"
	KindSystemRecovery EntryKind = "SYSTEM_RECOVERY"
	KindSuspend        EntryKind = "SUSPEND"
	KindRaioCheckin    EntryKind = "RAIO_CHECKIN"
)

// ExecutionStatus is the outcome of a tool execution entry.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "Success"
	ExecutionFail    ExecutionStatus = "Fail"
)

// AdminAction is the closed set of admin-access actions.
type AdminAction string

const (
	AdminActionView     AdminAction = "view"
	AdminActionDownload AdminAction = "download"
	AdminActionExport   AdminAction = "export"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantActive       TenantStatus = "active"
	TenantProvisioning TenantStatus = "provisioning"
	TenantSuspended    TenantStatus = "suspended"
	TenantDestroyed    TenantStatus = "destroyed"
)

// GenesisHash is the sentinel prev_hash/chain-head value for an empty chain.
const GenesisHash = "GENESIS"

// Entry is one chain record. Index, Timestamp, ReceiptID, PrevHash and
// EntryHash are assigned by the chain store; everything else is supplied
// by the caller as the logical payload.
type Entry struct {
	Index     uint64    `json:"index"`
	Kind      EntryKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	ReceiptID string    `json:"receipt_id"`
	PrevHash  string    `json:"prev_hash"`
	EntryHash string    `json:"entry_hash,omitempty"`

	// Tool execution payload.
	AgentNHI           string                 `json:"agent_nhi,omitempty"`
	ToolName           string                 `json:"tool_name,omitempty"`
	ToolArguments      map[string]interface{} `json:"tool_arguments,omitempty"`
	PolicySnapshotHash string                 `json:"policy_snapshot_hash,omitempty"`
	ExecutionStatus    ExecutionStatus        `json:"execution_status,omitempty"`
	ExecutionResult    map[string]interface{} `json:"execution_result,omitempty"`
	ExternalCallID     string                 `json:"external_call_id,omitempty"`

	// Admin access / AUDIT_SHIELD payload.
	AdminEmail string      `json:"admin_email,omitempty"`
	AdminName  string      `json:"admin_name,omitempty"`
	Action     AdminAction `json:"action,omitempty"`
	Purpose    string      `json:"purpose,omitempty"`
	TargetTenantID string  `json:"target_tenant_id,omitempty"`

	// Pulse / recovery payload.
	PulseSequence uint64 `json:"pulse_sequence,omitempty"`
	ProcessID     string `json:"process_id,omitempty"`
	GapDuration   string `json:"gap_duration,omitempty"`
	GapReason     string `json:"gap_reason,omitempty"`

	// Suspend payload.
	SuspendID   string `json:"suspend_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Actor       string `json:"actor,omitempty"`
	EventHash   string `json:"event_hash,omitempty"`

	// RAIO check-in payload.
	RaioUserID          string `json:"raio_user_id,omitempty"`
	DigitalFingerprint  string `json:"digital_fingerprint,omitempty"`
	MerkleRootSnapshot  string `json:"merkle_root_snapshot,omitempty"`
}

// Tenant is the minimal identity the core needs about a tenant; the
// surrounding product owns the rest of the tenant record.
type Tenant struct {
	ID        string       `json:"tenant_id"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Anchor is a remote witness record for one tenant's chain head at a
// point in time.
type Anchor struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	AnchorDate      string    `json:"anchor_date"`
	AnchoredAt      time.Time `json:"anchored_at"`
	ChainHeadHash   string    `json:"chain_head_hash"`
	ChainValid      bool      `json:"chain_valid"`
	VerifiedEntries uint64    `json:"verified_entries"`
	TotalEntries    uint64    `json:"total_entries"`
	KeyID           string    `json:"key_id"`
	Signature       string    `json:"signature"`
}

// Tombstone is a permanent record that a tenant was destroyed.
type Tombstone struct {
	TenantID        string    `json:"tenant_id"`
	CertificateID   string    `json:"certificate_id"`
	FinalRootHash   string    `json:"final_root_hash"`
	EntryCount      uint64    `json:"entry_count"`
	ByteCount       int64     `json:"byte_count"`
	DestroyedAt     time.Time `json:"destroyed_at"`
	Signature       string    `json:"signature"`
}

// DeletionCertificate is returned to the caller of sovereign exit.
type DeletionCertificate struct {
	CertificateID       string    `json:"certificate_id"`
	TenantID            string    `json:"tenant_id"`
	IssuedAt            time.Time `json:"issued_at"`
	ArtifactInventory   []string  `json:"artifact_inventory"`
	TotalBytesShredded  int64     `json:"total_bytes_shredded"`
	AllPathsVerifiedNull bool     `json:"all_paths_verified_null"`
	CryptoShredProof    string    `json:"crypto_shred_proof"`
	FinalRootHash       string    `json:"final_root_hash"`
	EntryCount          uint64    `json:"entry_count"`
	Signature           string    `json:"signature"`
}

// GovernanceRecord is one RAIO human-supervisor check-in.
type GovernanceRecord struct {
	RaioUserID         string    `json:"raio_user_id"`
	DigitalFingerprint string    `json:"digital_fingerprint"`
	MerkleRootSnapshot string    `json:"merkle_root_snapshot"`
	Timestamp          time.Time `json:"timestamp"`
}
