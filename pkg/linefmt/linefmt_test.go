package linefmt

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	plaintext := []byte(`{"hello":"world"}`)

	line, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, EncPrefix))

	got, err := Decrypt(key, line)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	line, err := Encrypt(randomKey(t), []byte("data"))
	require.NoError(t, err)

	_, err = Decrypt(randomKey(t), line)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key := randomKey(t)
	line, err := Encrypt(key, []byte(`{"a":1}`))
	require.NoError(t, err)

	// Flip a byte deep in the base64 payload (well past the prefix).
	b := []byte(line)
	b[len(b)-5] ^= 0xFF
	_, err = Decrypt(key, string(b))
	assert.Error(t, err)
}

func TestIsEncrypted(t *testing.T) {
	assert.True(t, IsEncrypted("ENC:abcd"))
	assert.False(t, IsEncrypted(`{"plain":true}`))
}
