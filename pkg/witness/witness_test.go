package witness

import (
	"encoding/base64"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/chainstore"
	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/keys"
	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/types"
)

type noTombstones struct{}

func (noTombstones) Contains(string) (bool, error) { return false, nil }

func newWitness(t *testing.T) (*Witness, *chainstore.Store, *keys.Manager) {
	t.Helper()
	km := keys.NewManager(t.TempDir(), nil)
	chain := chainstore.New(t.TempDir(), km, noTombstones{})
	remote, err := remotestore.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close() })

	w := &Witness{
		Verifier: integrity.New(chain),
		Chain:    chain,
		Remote:   remote,
		Keyring:  NewKeyring([]byte("witness-test-key")),
	}
	return w, chain, km
}

func appendOne(t *testing.T, chain *chainstore.Store, tenantID, tool string) *types.Entry {
	t.Helper()
	e, err := chain.Append(tenantID, types.Entry{
		Kind:            types.KindToolExecution,
		ToolName:        tool,
		ExecutionStatus: types.ExecutionSuccess,
	})
	require.NoError(t, err)
	return e
}

func TestAnchorAllTenants(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")

	summary, err := w.AnchorAllTenants()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Summary.TotalTenants)
	assert.Equal(t, 1, summary.Summary.Anchored)
	assert.Equal(t, 0, summary.Summary.Errors)

	anchor, err := w.Remote.LatestAnchor("acme")
	require.NoError(t, err)
	assert.True(t, anchor.ChainValid)
	assert.Equal(t, uint64(1), anchor.TotalEntries)
	assert.Equal(t, DefaultKeyID, anchor.KeyID)
	assert.NoError(t, w.Keyring.Verify(anchor.KeyID, anchorSignable(anchor), anchor.Signature))
}

func TestVerifyWitnessMatch(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")

	_, err := w.AnchorAllTenants()
	require.NoError(t, err)

	v, anchor, err := w.VerifyWitness("acme")
	require.NoError(t, err)
	assert.Equal(t, VerdictMatch, v.Verdict)
	assert.True(t, v.WitnessMatch)
	assert.True(t, v.LocalIntegrityValid)
	assert.True(t, v.SignatureValid)
	require.NotNil(t, anchor)
}

func TestVerifyWitnessLocalAhead(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")

	_, err := w.AnchorAllTenants()
	require.NoError(t, err)

	// New appends between anchor runs are expected.
	appendOne(t, chain, "acme", "pong")

	v, _, err := w.VerifyWitness("acme")
	require.NoError(t, err)
	assert.Equal(t, VerdictLocalAhead, v.Verdict)
	assert.True(t, v.WitnessMatch)
}

func TestVerifyWitnessNoAnchor(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")

	v, anchor, err := w.VerifyWitness("acme")
	require.NoError(t, err)
	assert.Equal(t, VerdictNoAnchor, v.Verdict)
	assert.Nil(t, anchor)
}

func TestVerifyWitnessLocalBroken(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")
	appendOne(t, chain, "acme", "pong")

	_, err := w.AnchorAllTenants()
	require.NoError(t, err)

	// Corrupt the ciphertext of line 0.
	raw, err := os.ReadFile(chain.LedgerPath("acme"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(lines[0], linefmt.EncPrefix))
	require.NoError(t, err)
	payload[len(payload)-1] ^= 0x01
	lines[0] = linefmt.EncPrefix + base64.StdEncoding.EncodeToString(payload)
	require.NoError(t, os.WriteFile(chain.LedgerPath("acme"), []byte(strings.Join(lines, "\n")+"\n"), 0644))

	v, _, err := w.VerifyWitness("acme")
	require.NoError(t, err)
	assert.Equal(t, VerdictLocalBroken, v.Verdict)
	assert.False(t, v.LocalIntegrityValid)
	assert.False(t, v.WitnessMatch)
}

func TestVerifyWitnessMismatch(t *testing.T) {
	w, chain, km := newWitness(t)
	require.NoError(t, km.EnsureKey("acme"))
	appendOne(t, chain, "acme", "ping")

	// An anchor for a head that never appears in the local chain.
	anchor := &types.Anchor{
		ID:            "bogus",
		TenantID:      "acme",
		ChainHeadHash: strings.Repeat("f", 64),
	}
	require.NoError(t, w.Remote.PutAnchor(anchor))

	v, _, err := w.VerifyWitness("acme")
	require.NoError(t, err)
	assert.Equal(t, VerdictMismatch, v.Verdict)
	assert.False(t, v.WitnessMatch)
}

func TestKeyringRejectsUnknownKeyID(t *testing.T) {
	k := NewKeyring([]byte("primary"))
	err := k.Verify("v9", map[string]interface{}{"x": 1}, "00")
	assert.ErrorIs(t, err, ErrUnknownKeyID)
}

func TestKeyringOverlapVerification(t *testing.T) {
	old := NewKeyring([]byte("old-key"))
	id, sig, err := old.Sign(map[string]interface{}{"tenant_id": "acme"})
	require.NoError(t, err)

	// After a witness-key rotation the new keyring keeps the retired
	// key registered under a separate id ("v0"). The old id now names
	// the new primary key, so the signature no longer verifies under it.
	rotated := NewKeyring([]byte("new-key"))
	rotated.Register("v0", []byte("old-key"))
	assert.Error(t, rotated.Verify(id, map[string]interface{}{"tenant_id": "acme"}, sig))
	assert.NoError(t, rotated.Verify("v0", map[string]interface{}{"tenant_id": "acme"}, sig))
}

func TestCronAuthorization(t *testing.T) {
	secret := "s3cret"

	r := httptest.NewRequest("POST", "/cron/anchor", nil)
	assert.False(t, Authorized(r, secret))

	r = httptest.NewRequest("POST", "/cron/anchor", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	assert.True(t, Authorized(r, secret))

	r = httptest.NewRequest("POST", "/cron/anchor", nil)
	r.Header.Set("x-cron-secret", "s3cret")
	assert.True(t, Authorized(r, secret))

	r = httptest.NewRequest("POST", "/cron/anchor", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, Authorized(r, secret))

	// Development mode: unset secret allows everything.
	r = httptest.NewRequest("POST", "/cron/anchor", nil)
	assert.True(t, Authorized(r, ""))
}
