package suspension

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/audit"
	"github.com/sentinelgov/auditchain/pkg/chainstore"
	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/keys"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/types"
)

type noTombstones struct{}

func (noTombstones) Contains(string) (bool, error) { return false, nil }

func newEngine(t *testing.T) (*Engine, *audit.Logger, *chainstore.Store, *remotestore.BoltStore) {
	t.Helper()
	km := keys.NewManager(t.TempDir(), nil)
	chain := chainstore.New(t.TempDir(), km, noTombstones{})
	remote, err := remotestore.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close() })

	engine := New(integrity.New(chain), remote, nil)
	logger := audit.New(chain, engine, nil)
	engine.Logger = logger

	require.NoError(t, km.EnsureKey("acme"))
	_, err = logger.WriteToolExecution(audit.ToolExecutionRequest{
		TenantID:        "acme",
		ToolName:        "ping",
		ExecutionStatus: types.ExecutionSuccess,
	})
	require.NoError(t, err)

	return engine, logger, chain, remote
}

func TestSuspendHappyPath(t *testing.T) {
	engine, _, chain, remote := newEngine(t)

	require.NoError(t, remote.PutCall(&remotestore.CallRecord{
		ID: "call-1", TenantID: "acme", Status: remotestore.CallInProgress,
	}))

	receipt, err := engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.SuspendID, "SUSPEND-"))
	assert.Len(t, receipt.EventHash, 64)
	assert.Equal(t, 1, receipt.CallsEnded)

	// Dual-collection state landed.
	doc, err := remote.GetGovTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, types.TenantSuspended, doc.Status)
	assert.Equal(t, "OFFLINE", doc.OperationalMode)
	assert.NotNil(t, doc.ChainStateAtSuspend)

	// The chain gained the AUDIT_SHIELD entry and still verifies.
	entries, err := chain.ReadAll("acme")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	shield := entries[1]
	assert.Equal(t, types.KindAdminAccess, shield.Kind)
	assert.True(t, strings.HasPrefix(shield.Purpose, "EMERGENCY_GLASS_BREAK"))
	assert.Equal(t, receipt.EventHash, shield.EventHash)

	report, err := engine.Verifier.Verify("acme")
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestSuspendIsIdempotent(t *testing.T) {
	engine, _, _, _ := newEngine(t)

	_, err := engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	require.NoError(t, err)

	_, err = engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	assert.ErrorIs(t, err, ErrAlreadySuspended)
}

func TestSuspendedTenantRejectsToolExecution(t *testing.T) {
	engine, logger, _, _ := newEngine(t)

	_, err := engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	require.NoError(t, err)

	_, err = logger.WriteToolExecution(audit.ToolExecutionRequest{TenantID: "acme", ToolName: "ping"})
	assert.ErrorIs(t, err, audit.ErrTenantSuspended)
}

func TestSuspendRefusesBrokenChain(t *testing.T) {
	engine, _, chain, _ := newEngine(t)

	// Truncate the ledger to a garbage line.
	require.NoError(t, os.WriteFile(chain.LedgerPath("acme"), []byte("ENC:not-base64\n"), 0644))

	_, err := engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	assert.ErrorIs(t, err, ErrCriticalIntegrityFailure)
}

func TestSuspendRefusesDestroyedTenant(t *testing.T) {
	engine, _, _, remote := newEngine(t)
	require.NoError(t, remote.PutGovTenant(&remotestore.GovTenant{
		TenantID: "acme",
		Status:   types.TenantDestroyed,
	}))

	_, err := engine.Suspend("acme", "GLASS_BREAK", "admin@example.gov")
	assert.ErrorIs(t, err, ErrTenantDestroyed)
}

func TestTenantStatusDefaultsToActive(t *testing.T) {
	engine, _, _, _ := newEngine(t)

	status, err := engine.TenantStatus("never-seen")
	require.NoError(t, err)
	assert.Equal(t, types.TenantActive, status)
	assert.False(t, engine.IsSuspendedOrDestroyed("never-seen"))
}
