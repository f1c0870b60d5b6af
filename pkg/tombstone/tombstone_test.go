package tombstone

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sentinelgov/auditchain/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndContains(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir, []byte("test-hmac-key"))

	ok, err := reg.Contains("acme")
	require.NoError(t, err)
	assert.False(t, ok)

	err = reg.Append(types.Tombstone{
		TenantID:      "acme",
		FinalRootHash: "deadbeef",
		EntryCount:    3,
		ByteCount:     1024,
		DestroyedAt:   time.Now(),
	})
	require.NoError(t, err)

	ok, err = reg.Contains("acme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListReturnsSignedRecords(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir, []byte("test-hmac-key"))

	require.NoError(t, reg.Append(types.Tombstone{TenantID: "a", DestroyedAt: time.Now()}))
	require.NoError(t, reg.Append(types.Tombstone{TenantID: "b", DestroyedAt: time.Now()}))

	records, err := reg.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.NotEmpty(t, r.Signature)
		assert.NotEmpty(t, r.CertificateID)
	}
}

func TestListOnMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	reg := New(filepath.Join(dir, "nested"), []byte("k"))
	records, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewRegistryPicksUpExistingFile(t *testing.T) {
	dir := t.TempDir()
	reg1 := New(dir, []byte("k"))
	require.NoError(t, reg1.Append(types.Tombstone{TenantID: "acme", DestroyedAt: time.Now()}))

	reg2 := New(dir, []byte("k"))
	ok, err := reg2.Contains("acme")
	require.NoError(t, err)
	assert.True(t, ok)
}
