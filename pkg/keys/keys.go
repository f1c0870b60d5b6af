// Package keys owns the per-tenant symmetric key lifecycle: generate,
// load, rotate and destroy, gated by the tombstone registry so a
// destroyed tenant id can never be reused.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sentinelgov/auditchain/pkg/atomicfile"
	"github.com/sentinelgov/auditchain/pkg/canon"
	"github.com/sentinelgov/auditchain/pkg/log"
)

// KeySize is the length, in bytes, of a tenant symmetric key.
const KeySize = 32

// ErrTombstoned is returned by EnsureKey when the tenant id has
// already been destroyed.
var ErrTombstoned = fmt.Errorf("keys: tenant id has been destroyed and cannot be reused")

// ErrKeyNotFound is returned by LoadKey when no key file exists.
var ErrKeyNotFound = fmt.Errorf("keys: no key file for tenant")

// ErrMalformedKey is returned by LoadKey when the key file does not
// contain exactly 64 hex characters.
var ErrMalformedKey = fmt.Errorf("keys: key file is not exactly 64 hex characters")

// Tombstones is the subset of the tombstone registry the key manager
// consults. Declared locally so keys does not import pkg/tombstone's
// full surface, and so a test double is trivial to supply.
type Tombstones interface {
	Contains(tenantID string) (bool, error)
}

// Manager generates, loads, rotates and destroys per-tenant keys under
// a single keys root directory.
type Manager struct {
	root       string
	tombstones Tombstones

	mu     sync.Mutex
	perTen map[string]*sync.Mutex
}

// NewManager creates a Manager rooted at keysRoot.
func NewManager(keysRoot string, tombstones Tombstones) *Manager {
	return &Manager{
		root:       keysRoot,
		tombstones: tombstones,
		perTen:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lockFor(tenantID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.perTen[tenantID]
	if !ok {
		l = &sync.Mutex{}
		m.perTen[tenantID] = l
	}
	return l
}

// KeyPath returns the on-disk path of tenantID's key file.
func (m *Manager) KeyPath(tenantID string) string {
	return filepath.Join(m.root, canon.SanitizeTenantID(tenantID)+".key")
}

// HasKey reports whether a key file currently exists for tenantID.
func (m *Manager) HasKey(tenantID string) bool {
	_, err := os.Stat(m.KeyPath(tenantID))
	return err == nil
}

// EnsureKey creates a key for tenantID if one does not already exist.
// It refuses tombstoned tenant ids.
func (m *Manager) EnsureKey(tenantID string) error {
	lock := m.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	if m.HasKey(tenantID) {
		return nil
	}

	if m.tombstones != nil {
		destroyed, err := m.tombstones.Contains(tenantID)
		if err != nil {
			return fmt.Errorf("keys: check tombstone registry: %w", err)
		}
		if destroyed {
			return ErrTombstoned
		}
	}

	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("keys: generate key material: %w", err)
	}

	return m.writeKeyAtomic(tenantID, raw)
}

// LoadKey reads and parses tenantID's key file.
func (m *Manager) LoadKey(tenantID string) ([]byte, error) {
	b, err := os.ReadFile(m.KeyPath(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("keys: read key file: %w", err)
	}
	return decodeKey(b)
}

// DestroyKey overwrites the key file with random bytes, fsyncs,
// unlinks it, and verifies the path is gone.
func (m *Manager) DestroyKey(tenantID string) error {
	lock := m.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	path := m.KeyPath(tenantID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("keys: stat key file: %w", err)
	}

	if err := overwriteWithRandom(path, info.Size()); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("keys: unlink key file: %w", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return fmt.Errorf("keys: key file still present after destroy")
	}

	tenantLog := log.WithTenant(tenantID)
	tenantLog.Warn().Msg("tenant key destroyed")
	return nil
}

func (m *Manager) writeKeyAtomic(tenantID string, raw []byte) error {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return fmt.Errorf("keys: create keys root: %w", err)
	}
	return atomicfile.Write(m.KeyPath(tenantID), []byte(hex.EncodeToString(raw)), ".tmp", 0600)
}

func decodeKey(b []byte) ([]byte, error) {
	trimmed := trimTrailingNewline(b)
	if len(trimmed) != KeySize*2 {
		return nil, ErrMalformedKey
	}
	key, err := hex.DecodeString(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return key, nil
}

func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// ShredFile overwrites the file at path with size random bytes,
// fsyncs, and unlinks it. Sovereign exit uses this for every file in
// the silo; DestroyKey uses the same sequence for the key file.
func ShredFile(path string, size int64) error {
	if err := overwriteWithRandom(path, size); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("keys: unlink shredded file: %w", err)
	}
	return nil
}

func overwriteWithRandom(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("keys: open for shred: %w", err)
	}
	defer f.Close()

	junk := make([]byte, size)
	if _, err := rand.Read(junk); err != nil {
		return fmt.Errorf("keys: generate shred bytes: %w", err)
	}
	if _, err := f.WriteAt(junk, 0); err != nil {
		return fmt.Errorf("keys: overwrite file: %w", err)
	}
	return f.Sync()
}
