package chainstore

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelgov/auditchain/pkg/keys"
	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/sentinelgov/auditchain/pkg/types"
)

type noTombstones struct{}

func (noTombstones) Contains(string) (bool, error) { return false, nil }

type allTombstoned struct{}

func (allTombstoned) Contains(string) (bool, error) { return true, nil }

func newTestStore(t *testing.T) (*Store, *keys.Manager) {
	t.Helper()
	root := t.TempDir()
	km := keys.NewManager(t.TempDir(), nil)
	return New(root, km, noTombstones{}), km
}

func TestAppendFirstEntry(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	entry, err := s.Append("acme", types.Entry{
		Kind:            types.KindToolExecution,
		ToolName:        "ping",
		ExecutionStatus: types.ExecutionSuccess,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), entry.Index)
	assert.Equal(t, types.GenesisHash, entry.PrevHash)
	assert.True(t, strings.HasPrefix(entry.ReceiptID, "AR-"))
	assert.Len(t, entry.EntryHash, 64)

	data, err := os.ReadFile(s.LedgerPath("acme"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, linefmt.IsEncrypted(lines[0]))
}

func TestAppendLinksEntries(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	first, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "a"})
	require.NoError(t, err)
	second, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "b"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), second.Index)
	assert.Equal(t, first.EntryHash, second.PrevHash)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestAppendWithoutKeyFails(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution})
	assert.ErrorIs(t, err, ErrEncryptionKeyMissing)
}

func TestAppendRejectsTombstonedTenant(t *testing.T) {
	root := t.TempDir()
	km := keys.NewManager(t.TempDir(), nil)
	s := New(root, km, allTombstoned{})

	_, err := s.Append("gone", types.Entry{Kind: types.KindToolExecution})
	assert.ErrorIs(t, err, ErrTenantDestroyed)
}

func TestAppendRejectsOversizedPayload(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))
	s.MaxLineBytes = 512

	_, err := s.Append("acme", types.Entry{
		Kind:     types.KindToolExecution,
		ToolName: strings.Repeat("x", 1024),
	})
	assert.ErrorIs(t, err, ErrAuditWrite)
}

func TestAppendDetectsCorruptedPreviousEntry(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	_, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "a"})
	require.NoError(t, err)

	// Replace the last line with a plaintext entry whose entry_hash
	// does not match its content.
	require.NoError(t, os.WriteFile(s.LedgerPath("acme"),
		[]byte(`{"index":0,"kind":"TOOL_EXECUTION","prev_hash":"GENESIS","entry_hash":"deadbeef"}`+"\n"), 0644))

	_, err = s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "b"})
	assert.ErrorIs(t, err, ErrCriticalIntegrityFailure)
}

func TestReadAllRoundTrips(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	_, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "a"})
	require.NoError(t, err)
	_, err = s.Append("acme", types.Entry{Kind: types.KindPulse, PulseSequence: 7})
	require.NoError(t, err)

	entries, err := s.ReadAll("acme")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ToolName)
	assert.Equal(t, uint64(7), entries[1].PulseSequence)
}

func TestReadAllAcceptsLegacyPlaintextLines(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))
	require.NoError(t, os.MkdirAll(s.TenantDir("acme"), 0755))
	require.NoError(t, os.WriteFile(s.LedgerPath("acme"),
		[]byte(`{"index":0,"kind":"PULSE","prev_hash":"GENESIS","pulse_sequence":1}`+"\n"), 0644))

	entries, err := s.ReadAll("acme")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.KindPulse, entries[0].Kind)
}

func TestScanLastEntryOnEmptyChain(t *testing.T) {
	s, _ := newTestStore(t)

	last, err := s.ScanLastEntry("nobody")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestScanLastEntryFindsTail(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: name})
		require.NoError(t, err)
	}

	last, err := s.ScanLastEntry("acme")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, uint64(2), last.Index)
	assert.Equal(t, "c", last.ToolName)
}

func TestStrictFooterAppendStillLinks(t *testing.T) {
	s, km := newTestStore(t)
	require.NoError(t, km.EnsureKey("acme"))

	first, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "a"})
	require.NoError(t, err)

	s.StrictFooter = true
	second, err := s.Append("acme", types.Entry{Kind: types.KindToolExecution, ToolName: "b"})
	require.NoError(t, err)

	assert.Equal(t, first.EntryHash, second.PrevHash)
	assert.Equal(t, uint64(1), second.Index)
}

func TestListTenants(t *testing.T) {
	s, km := newTestStore(t)
	for _, tenant := range []string{"acme", "globex"} {
		require.NoError(t, km.EnsureKey(tenant))
		_, err := s.Append(tenant, types.Entry{Kind: types.KindPulse})
		require.NoError(t, err)
	}

	tenants, err := s.ListTenants()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, tenants)
}
