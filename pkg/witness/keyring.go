package witness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/sentinelgov/auditchain/pkg/canon"
)

// DefaultKeyID is the key id assigned to the key loaded from
// WITNESS_HMAC_KEY. Anchors are tagged with the id of the key that
// signed them so a rotation of the witness key can keep old signatures
// verifiable during overlap.
const DefaultKeyID = "v1"

// ErrUnknownKeyID is returned when a signature names a key id the
// keyring does not hold.
var ErrUnknownKeyID = fmt.Errorf("witness: unknown signing key id")

// Keyring holds the server-wide witness HMAC keys by id. The primary
// key signs new anchors; every registered key can verify.
type Keyring struct {
	mu        sync.RWMutex
	primaryID string
	keys      map[string][]byte
}

// NewKeyring creates a keyring whose primary key is primary under
// DefaultKeyID.
func NewKeyring(primary []byte) *Keyring {
	return &Keyring{
		primaryID: DefaultKeyID,
		keys:      map[string][]byte{DefaultKeyID: primary},
	}
}

// Register adds an additional verification key, e.g. a retired witness
// key kept for overlap after a rotation.
func (k *Keyring) Register(id string, key []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[id] = key
}

// PrimaryID returns the id new anchors are signed under.
func (k *Keyring) PrimaryID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.primaryID
}

// Sign HMAC-signs the canonical JSON encoding of v with the primary
// key and returns (keyID, hex signature).
func (k *Keyring) Sign(v interface{}) (string, string, error) {
	k.mu.RLock()
	id := k.primaryID
	key := k.keys[id]
	k.mu.RUnlock()

	sig, err := sign(key, v)
	if err != nil {
		return "", "", err
	}
	return id, sig, nil
}

// Verify checks sigHex against the canonical encoding of v under the
// key named by keyID.
func (k *Keyring) Verify(keyID string, v interface{}, sigHex string) error {
	k.mu.RLock()
	key, ok := k.keys[keyID]
	k.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKeyID, keyID)
	}
	expected, err := sign(key, v)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(sigHex)) {
		return fmt.Errorf("witness: signature mismatch for key id %q", keyID)
	}
	return nil
}

func sign(key []byte, v interface{}) (string, error) {
	b, err := canon.JSON(v)
	if err != nil {
		return "", fmt.Errorf("witness: canonicalize signable: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
