package governance

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/types"
)

type tempPaths struct {
	root string
}

func (p tempPaths) TenantDir(tenantID string) string {
	return p.root + "/" + tenantID
}

func (p tempPaths) GovernanceLedgerPath(tenantID string) string {
	return p.TenantDir(tenantID) + "/governance_ledger.json"
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(tempPaths{root: t.TempDir()})
}

func TestNoCheckinIsUnauthorized(t *testing.T) {
	l := newLedger(t)

	auth, err := l.IsRaioAuthorized("acme")
	require.NoError(t, err)
	assert.False(t, auth.Authorized)
	assert.Equal(t, VerdictNoCheckin, auth.Verdict)
	assert.Equal(t, -1, auth.DaysSinceCheckin)
	assert.Nil(t, auth.LatestEntry)
}

func TestFreshCheckinAuthorizes(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{
		RaioUserID:         "raio-7",
		DigitalFingerprint: "fp-abc",
		MerkleRootSnapshot: "GENESIS",
	}))

	auth, err := l.IsRaioAuthorized("acme")
	require.NoError(t, err)
	assert.True(t, auth.Authorized)
	assert.Equal(t, VerdictAuthorized, auth.Verdict)
	assert.Equal(t, 0, auth.DaysSinceCheckin)
	require.NotNil(t, auth.LatestEntry)
	assert.Equal(t, "raio-7", auth.LatestEntry.RaioUserID)
}

func TestStaleCheckinExpires(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{
		RaioUserID: "raio-7",
		Timestamp:  time.Now().UTC().Add(-31 * 24 * time.Hour),
	}))

	auth, err := l.IsRaioAuthorized("acme")
	require.NoError(t, err)
	assert.False(t, auth.Authorized)
	assert.Equal(t, VerdictExpired, auth.Verdict)
	assert.Equal(t, 31, auth.DaysSinceCheckin)
}

func TestLatestCheckinWins(t *testing.T) {
	l := newLedger(t)

	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{
		RaioUserID: "old",
		Timestamp:  time.Now().UTC().Add(-40 * 24 * time.Hour),
	}))
	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{
		RaioUserID: "new",
	}))

	auth, err := l.IsRaioAuthorized("acme")
	require.NoError(t, err)
	assert.True(t, auth.Authorized)
	assert.Equal(t, "new", auth.LatestEntry.RaioUserID)
}

func TestLedgerFileIsAJSONArray(t *testing.T) {
	paths := tempPaths{root: t.TempDir()}
	l := New(paths)

	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{RaioUserID: "a"}))
	require.NoError(t, l.RecordCheckin("acme", types.GovernanceRecord{RaioUserID: "b"}))

	data, err := os.ReadFile(paths.GovernanceLedgerPath("acme"))
	require.NoError(t, err)

	var records []types.GovernanceRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].RaioUserID)
	assert.Equal(t, "b", records[1].RaioUserID)
}
