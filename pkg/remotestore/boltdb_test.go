package remotestore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/types"
)

func newStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLatestAnchorOrdering(t *testing.T) {
	s := newStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutAnchor(&types.Anchor{
			ID:            fmt.Sprintf("a%d", i),
			TenantID:      "acme",
			AnchoredAt:    base.Add(time.Duration(i) * time.Hour),
			ChainHeadHash: fmt.Sprintf("head-%d", i),
		}))
	}

	latest, err := s.LatestAnchor("acme")
	require.NoError(t, err)
	assert.Equal(t, "a2", latest.ID)
	assert.Equal(t, "head-2", latest.ChainHeadHash)
}

func TestLatestAnchorNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.LatestAnchor("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnchorsAreTenantScoped(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.PutAnchor(&types.Anchor{ID: "a", TenantID: "acme", AnchoredAt: time.Now()}))
	require.NoError(t, s.PutAnchor(&types.Anchor{ID: "b", TenantID: "acme-west", AnchoredAt: time.Now()}))

	anchors, err := s.ListAnchors("acme")
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	assert.Equal(t, "a", anchors[0].ID)
}

func TestPurgeAnchorsBatches(t *testing.T) {
	s := newStore(t)
	s.BatchLimit = 3

	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		require.NoError(t, s.PutAnchor(&types.Anchor{
			ID:         fmt.Sprintf("a%d", i),
			TenantID:   "acme",
			AnchoredAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.PutAnchor(&types.Anchor{ID: "other", TenantID: "globex", AnchoredAt: base}))

	purged, err := s.PurgeAnchors("acme")
	require.NoError(t, err)
	assert.Equal(t, 10, purged)

	_, err = s.LatestAnchor("acme")
	assert.ErrorIs(t, err, ErrNotFound)

	// Other tenants' anchors survive.
	_, err = s.LatestAnchor("globex")
	assert.NoError(t, err)
}

func TestApplySuspensionWritesBothCollections(t *testing.T) {
	s := newStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.ApplySuspension(SuspensionBatch{
		GovTenant: GovTenant{
			TenantID:        "acme",
			OwnerUID:        "owner-1",
			Status:          types.TenantSuspended,
			OperationalMode: "OFFLINE",
			SuspendID:       "SUSPEND-1",
			SuspendedAt:     &now,
		},
		Tenant: TenantDoc{
			OwnerUID:  "owner-1",
			TenantID:  "acme",
			Status:    types.TenantSuspended,
			SuspendID: "SUSPEND-1",
			UpdatedAt: now,
		},
	}))

	doc, err := s.GetGovTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, types.TenantSuspended, doc.Status)
	assert.Equal(t, "OFFLINE", doc.OperationalMode)
	assert.Equal(t, "SUSPEND-1", doc.SuspendID)
}

func TestTerminateInFlightCalls(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.PutCall(&CallRecord{ID: "c1", TenantID: "acme", Status: CallInProgress}))
	require.NoError(t, s.PutCall(&CallRecord{ID: "c2", TenantID: "acme", Status: "completed"}))
	require.NoError(t, s.PutCall(&CallRecord{ID: "c3", TenantID: "globex", Status: CallInProgress}))

	n, err := s.TerminateInFlightCalls("acme", "SUSPEND-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	calls, err := s.ListCallsByTenant("acme")
	require.NoError(t, err)
	for _, c := range calls {
		switch c.ID {
		case "c1":
			assert.Equal(t, CallTerminatedByAdmin, c.Status)
			assert.Equal(t, "SUSPEND-1", c.SuspendID)
		case "c2":
			assert.Equal(t, "completed", c.Status)
		}
	}

	// Other tenants' in-flight calls are untouched.
	other, err := s.ListCallsByTenant("globex")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, CallInProgress, other[0].Status)
}

func TestMarkDestroyedPreservesDocument(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.PutGovTenant(&GovTenant{
		TenantID: "acme",
		OwnerUID: "owner-1",
		Status:   types.TenantActive,
	}))

	require.NoError(t, s.MarkDestroyed("acme", ""))

	doc, err := s.GetGovTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, types.TenantDestroyed, doc.Status)
	assert.Equal(t, "owner-1", doc.OwnerUID)
}
