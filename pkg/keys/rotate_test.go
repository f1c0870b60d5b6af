package keys

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alwaysOK struct{}

func (alwaysOK) IsSuspendedOrDestroyed(string) bool { return false }

type alwaysBlocked struct{}

func (alwaysBlocked) IsSuspendedOrDestroyed(string) bool { return true }

func TestRotateKeyReencryptsEveryLine(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakeTombstones{destroyed: map[string]bool{}})
	require.NoError(t, m.EnsureKey("acme"))

	oldKey, err := m.LoadKey("acme")
	require.NoError(t, err)

	ledgerPath := filepath.Join(dir, "ledger.ndjson")
	line1, err := linefmt.Encrypt(oldKey, []byte(`{"index":0}`))
	require.NoError(t, err)
	line2, err := linefmt.Encrypt(oldKey, []byte(`{"index":1}`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(ledgerPath, []byte(line1+"\n"+line2+"\n"), 0644))

	report, err := m.RotateKey("acme", ledgerPath, alwaysOK{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.LinesRotated)
	assert.NotEqual(t, report.OldKeyHex, report.NewKeyHex)

	newKey, err := m.LoadKey("acme")
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, newKey)

	raw, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	got0, err := linefmt.Decrypt(newKey, lines[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":0}`, string(got0))

	got1, err := linefmt.Decrypt(newKey, lines[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1}`, string(got1))
}

func TestRotateKeyRefusesWithoutExistingKey(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakeTombstones{destroyed: map[string]bool{}})
	_, err := m.RotateKey("ghost", filepath.Join(dir, "ledger.ndjson"), alwaysOK{})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestRotateKeyRefusesSuspendedTenant(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakeTombstones{destroyed: map[string]bool{}})
	require.NoError(t, m.EnsureKey("acme"))

	_, err := m.RotateKey("acme", filepath.Join(dir, "ledger.ndjson"), alwaysBlocked{})
	assert.Error(t, err)
}

func TestRotateKeyPreservesLegacyPlaintextLines(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakeTombstones{destroyed: map[string]bool{}})
	require.NoError(t, m.EnsureKey("acme"))

	ledgerPath := filepath.Join(dir, "ledger.ndjson")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(`{"legacy":true}`+"\n"), 0644))

	report, err := m.RotateKey("acme", ledgerPath, alwaysOK{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.LinesRotated)

	newKey, err := m.LoadKey("acme")
	require.NoError(t, err)
	raw, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	got, err := linefmt.Decrypt(newKey, strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"legacy":true}`, string(got))
}
