// Package tombstone owns the global, append-only registry of
// destroyed tenants: a single file at
// <root>/audit/tombstones.ndjson, one signed JSON record per line.
// pkg/keys, pkg/chainstore and pkg/exit all consult this one
// implementation rather than three ad hoc ones.
package tombstone

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sentinelgov/auditchain/pkg/canon"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// Registry is the process-wide destroyed-tenant ledger. It is safe for
// concurrent use.
type Registry struct {
	path    string
	hmacKey []byte

	mu     sync.RWMutex
	byID   map[string]bool
	loaded bool
}

// New creates a Registry backed by <auditRoot>/tombstones.ndjson,
// signing new records with hmacKey (hex or raw bytes are both
// accepted by the caller; this package treats it as an opaque key).
func New(auditRoot string, hmacKey []byte) *Registry {
	return &Registry{
		path:    filepath.Join(auditRoot, "tombstones.ndjson"),
		hmacKey: hmacKey,
		byID:    make(map[string]bool),
	}
}

// Contains reports whether tenantID has already been destroyed. Per
// the tombstone-monotonicity invariant, once true it is true forever.
func (r *Registry) Contains(tenantID string) (bool, error) {
	if err := r.ensureLoaded(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[tenantID], nil
}

// Append adds a new signed tombstone record. It always appends, even
// for a tenant that already has a record; it does not consult Contains.
func (r *Registry) Append(t types.Tombstone) error {
	if t.CertificateID == "" {
		t.CertificateID = uuid.NewString()
	}

	signable := map[string]interface{}{
		"tenant_id":       t.TenantID,
		"certificate_id":  t.CertificateID,
		"final_root_hash": t.FinalRootHash,
		"entry_count":     t.EntryCount,
		"byte_count":      t.ByteCount,
		"destroyed_at":    t.DestroyedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	sig, err := r.sign(signable)
	if err != nil {
		return fmt.Errorf("tombstone: sign record: %w", err)
	}
	t.Signature = sig

	line, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("tombstone: marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("tombstone: create audit root: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("tombstone: open registry: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("tombstone: append record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("tombstone: fsync registry: %w", err)
	}

	if r.byID == nil {
		r.byID = make(map[string]bool)
	}
	r.byID[t.TenantID] = true
	tenantLog := log.WithTenant(t.TenantID)
	tenantLog.Warn().Str("certificate_id", t.CertificateID).Msg("tenant tombstoned")
	return nil
}

// List returns every tombstone record currently on disk.
func (r *Registry) List() ([]types.Tombstone, error) {
	r.mu.RLock()
	path := r.path
	r.mu.RUnlock()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tombstone: open registry: %w", err)
	}
	defer f.Close()

	var out []types.Tombstone
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t types.Tombstone
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("tombstone: parse record: %w", err)
		}
		out = append(out, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tombstone: scan registry: %w", err)
	}
	return out, nil
}

func (r *Registry) ensureLoaded() error {
	r.mu.RLock()
	if r.loaded {
		r.mu.RUnlock()
		return nil
	}
	r.mu.RUnlock()

	records, err := r.List()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}
	if r.byID == nil {
		r.byID = make(map[string]bool)
	}
	for _, t := range records {
		r.byID[t.TenantID] = true
	}
	r.loaded = true
	return nil
}

func (r *Registry) sign(v interface{}) (string, error) {
	b, err := canon.JSON(v)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, r.hmacKey)
	mac.Write(b)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
