package chainstore

import "errors"

// Sentinel errors surfaced by Store operations.
var (
	// ErrEncryptionKeyMissing means no tenant key is available to
	// encrypt or decrypt a line.
	ErrEncryptionKeyMissing = errors.New("chainstore: encryption key missing")

	// ErrTenantDestroyed means the tenant id is tombstoned.
	ErrTenantDestroyed = errors.New("chainstore: tenant has been destroyed")

	// ErrAuditWrite wraps a non-critical write failure: the append did
	// not happen, but the chain itself is not known to be corrupt.
	ErrAuditWrite = errors.New("chainstore: audit write failed")

	// ErrCriticalIntegrityFailure means the chain did not verify at the
	// moment of append; callers MUST treat this as fatal and refuse any
	// dependent side effect.
	ErrCriticalIntegrityFailure = errors.New("chainstore: critical integrity failure")

	// ErrLineTooLarge means a payload exceeded the configured maximum
	// serialized line length.
	ErrLineTooLarge = errors.New("chainstore: entry exceeds maximum line length")

	// ErrDecryptFailed means an ENC: line failed to decrypt under the
	// tenant's current key.
	ErrDecryptFailed = errors.New("chainstore: decrypt failed")
)
