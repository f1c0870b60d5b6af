package exit

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/pbkdf2"
)

// Archive key-derivation and layout parameters. The binary layout is
// salt(32) ‖ iv(12) ‖ tag(16) ‖ ciphertext.
const (
	SaltSize       = 32
	IVSize         = 12
	TagSize        = 16
	KDFIterations  = 100000
	ArchiveKeySize = 32
)

// sealArchive gzips plaintext and encrypts it under a key derived from
// passphrase with PBKDF2-HMAC-SHA256.
func sealArchive(plaintext []byte, passphrase string) ([]byte, error) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(plaintext); err != nil {
		return nil, fmt.Errorf("exit: gzip archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("exit: close gzip writer: %w", err)
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("exit: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, KDFIterations, ArchiveKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("exit: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("exit: new gcm: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("exit: generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, compressed.Bytes(), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	archive := make([]byte, 0, SaltSize+IVSize+TagSize+len(ct))
	archive = append(archive, salt...)
	archive = append(archive, iv...)
	archive = append(archive, tag...)
	archive = append(archive, ct...)
	return archive, nil
}

// OpenArchive reverses sealArchive: it decrypts archive under
// passphrase and gunzips the result back to the JSON envelope. The
// tenant runs this client-side against the only remaining copy of
// their data; it is also what the operator CLI's inspect command uses.
func OpenArchive(archive []byte, passphrase string) ([]byte, error) {
	if len(archive) < SaltSize+IVSize+TagSize {
		return nil, fmt.Errorf("exit: archive shorter than its header")
	}
	salt := archive[:SaltSize]
	iv := archive[SaltSize : SaltSize+IVSize]
	tag := archive[SaltSize+IVSize : SaltSize+IVSize+TagSize]
	ct := archive[SaltSize+IVSize+TagSize:]

	key := pbkdf2.Key([]byte(passphrase), salt, KDFIterations, ArchiveKeySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("exit: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("exit: new gcm: %w", err)
	}

	sealed := append(append([]byte{}, ct...), tag...)
	compressed, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("exit: decrypt archive: %w", err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("exit: open gzip reader: %w", err)
	}
	defer gz.Close()

	plaintext, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("exit: gunzip archive: %w", err)
	}
	return plaintext, nil
}
