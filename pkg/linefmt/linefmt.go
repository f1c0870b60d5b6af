// Package linefmt implements the on-disk line format shared by
// pkg/chainstore and pkg/keys (rotation re-encrypts ledger lines
// in place): either an encrypted line "ENC:<base64(iv‖tag‖ciphertext)>"
// using AES-256-GCM, or a legacy plaintext JSON object accepted as-is
// on read. Keeping the codec in its own package lets both chainstore
// and the key manager's rotation routine share one implementation
// without an import cycle between them.
package linefmt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// EncPrefix marks an encrypted line.
const EncPrefix = "ENC:"

// ErrDecryptFailed is returned when an ENC: line fails to authenticate
// or decrypt under the given key.
var ErrDecryptFailed = errors.New("linefmt: decrypt failed")

// Encrypt wraps plaintext as an "ENC:" line under key (must be 32
// bytes). iv is 12 random bytes; the GCM tag is appended by Seal and
// lives immediately after the IV in the base64 payload, matching the
// wire layout iv(12) ‖ tag(16) ‖ ciphertext.
func Encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("linefmt: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("linefmt: new gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("linefmt: generate iv: %w", err)
	}

	// Seal appends the tag to the ciphertext; our wire format wants
	// iv ‖ tag ‖ ciphertext, so the sealed output (ciphertext‖tag) is
	// rearranged before base64 encoding.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	payload := make([]byte, 0, len(iv)+len(tag)+len(ct))
	payload = append(payload, iv...)
	payload = append(payload, tag...)
	payload = append(payload, ct...)

	return EncPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryptFailed (wrapped) if
// authentication fails.
func Decrypt(key []byte, line string) ([]byte, error) {
	if len(line) < len(EncPrefix) || line[:len(EncPrefix)] != EncPrefix {
		return nil, fmt.Errorf("linefmt: not an encrypted line")
	}
	payload, err := base64.StdEncoding.DecodeString(line[len(EncPrefix):])
	if err != nil {
		return nil, fmt.Errorf("linefmt: base64 decode: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("linefmt: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("linefmt: new gcm: %w", err)
	}

	ivSize, tagSize := gcm.NonceSize(), gcm.Overhead()
	if len(payload) < ivSize+tagSize {
		return nil, fmt.Errorf("%w: payload too short", ErrDecryptFailed)
	}
	iv, tag, ct := payload[:ivSize], payload[ivSize:ivSize+tagSize], payload[ivSize+tagSize:]

	sealed := append(append([]byte{}, ct...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether line carries the ENC: prefix.
func IsEncrypted(line string) bool {
	return len(line) >= len(EncPrefix) && line[:len(EncPrefix)] == EncPrefix
}
