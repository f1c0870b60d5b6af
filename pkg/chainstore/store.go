// Package chainstore owns each tenant's on-disk silo: the append-only
// encrypted ledger, linkage between entries, and the chain-head lookup
// via reverse scan or footer cache.
package chainstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/sentinelgov/auditchain/pkg/canon"
)

// DefaultMaxLineBytes bounds a single serialized (pre-encryption)
// entry. Arguments larger than this are rejected with ErrAuditWrite
// rather than silently truncated.
const DefaultMaxLineBytes = 256 * 1024

// KeyLoader is the subset of pkg/keys.Manager the store needs.
type KeyLoader interface {
	LoadKey(tenantID string) ([]byte, error)
}

// TombstoneChecker is the subset of pkg/tombstone.Registry the store
// consults before every append.
type TombstoneChecker interface {
	Contains(tenantID string) (bool, error)
}

// Store owns every tenant's silo under Root.
type Store struct {
	Root         string
	Keys         KeyLoader
	Tombstones   TombstoneChecker
	MaxLineBytes int

	// StrictFooter, when true, trusts the footer cache as the head
	// without cross-checking via reverse scan. Default false: the
	// reverse scan is always performed and any drift from the footer
	// is logged. AUDIT_STRICT_FOOTER=1 turns this on.
	StrictFooter bool

	mu        sync.Mutex
	perTenant map[string]*sync.RWMutex
}

// New creates a Store rooted at auditRoot.
func New(auditRoot string, keys KeyLoader, tombstones TombstoneChecker) *Store {
	return &Store{
		Root:         auditRoot,
		Keys:         keys,
		Tombstones:   tombstones,
		MaxLineBytes: DefaultMaxLineBytes,
		perTenant:    make(map[string]*sync.RWMutex),
	}
}

func (s *Store) lockFor(tenantID string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.perTenant[tenantID]
	if !ok {
		l = &sync.RWMutex{}
		s.perTenant[tenantID] = l
	}
	return l
}

// TenantDir returns <root>/<sanitized_tenant_id>/.
func (s *Store) TenantDir(tenantID string) string {
	return filepath.Join(s.Root, canon.SanitizeTenantID(tenantID))
}

// LedgerPath returns the tenant's append-only ledger file path.
func (s *Store) LedgerPath(tenantID string) string {
	return filepath.Join(s.TenantDir(tenantID), "ledger.ndjson")
}

// GovernanceLedgerPath returns the tenant's RAIO governance ledger
// path, so pkg/governance shares the same silo layout.
func (s *Store) GovernanceLedgerPath(tenantID string) string {
	return filepath.Join(s.TenantDir(tenantID), "governance_ledger.json")
}

func (s *Store) ensureTenantDir(tenantID string) error {
	return os.MkdirAll(s.TenantDir(tenantID), 0755)
}

func (s *Store) checkNotDestroyed(tenantID string) error {
	if s.Tombstones == nil {
		return nil
	}
	destroyed, err := s.Tombstones.Contains(tenantID)
	if err != nil {
		return err
	}
	if destroyed {
		return ErrTenantDestroyed
	}
	return nil
}

func (s *Store) maxLineBytes() int {
	if s.MaxLineBytes > 0 {
		return s.MaxLineBytes
	}
	return DefaultMaxLineBytes
}

