package remotestore

import (
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// NullStore is the "no remote store configured" implementation: writes
// are logged and dropped, reads return ErrNotFound. Remote-store
// failures are recoverable by design, so a deployment without a store
// degrades to local-only operation instead of refusing to start.
type NullStore struct{}

func (NullStore) PutAnchor(anchor *types.Anchor) error {
	tenantLog := log.WithTenant(anchor.TenantID)
	tenantLog.Debug().Str("anchor_id", anchor.ID).Msg("null remote store: dropping anchor")
	return nil
}

func (NullStore) LatestAnchor(tenantID string) (*types.Anchor, error) {
	return nil, ErrNotFound
}

func (NullStore) ListAnchors(tenantID string) ([]*types.Anchor, error) {
	return nil, nil
}

func (NullStore) PurgeAnchors(tenantID string) (int, error) {
	return 0, nil
}

func (NullStore) GetGovTenant(tenantID string) (*GovTenant, error) {
	return nil, ErrNotFound
}

func (NullStore) PutGovTenant(doc *GovTenant) error {
	tenantLog := log.WithTenant(doc.TenantID)
	tenantLog.Debug().Msg("null remote store: dropping gov tenant update")
	return nil
}

func (NullStore) ApplySuspension(batch SuspensionBatch) error {
	tenantLog := log.WithTenant(batch.GovTenant.TenantID)
	tenantLog.Debug().Msg("null remote store: dropping suspension batch")
	return nil
}

func (NullStore) MarkDestroyed(tenantID, ownerUID string) error {
	tenantLog := log.WithTenant(tenantID)
	tenantLog.Debug().Msg("null remote store: dropping destroy marker")
	return nil
}

func (NullStore) TerminateInFlightCalls(tenantID, suspendID string) (int, error) {
	return 0, nil
}

func (NullStore) RecordRotation(rec RotationRecord) error {
	return nil
}

func (NullStore) Close() error { return nil }
