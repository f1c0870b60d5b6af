// Package governance owns the per-tenant RAIO check-in ledger: a JSON
// array file at <silo>/governance_ledger.json written with the same
// tmp+rename+fsync discipline as every other durable file here. A
// tenant's AI agent is authorized only while its most recent human
// check-in is at most 30 days old; the tool-execution path gates on
// that.
package governance

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sentinelgov/auditchain/pkg/atomicfile"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// AuthorizationWindow is how long one RAIO check-in stays valid.
const AuthorizationWindow = 30 * 24 * time.Hour

// Verdict strings returned by IsRaioAuthorized.
const (
	VerdictAuthorized = "AUTHORIZED"
	VerdictExpired    = "CHECKIN_EXPIRED"
	VerdictNoCheckin  = "NO_CHECKIN"
)

// Paths is the subset of pkg/chainstore.Store the ledger needs: where
// each tenant's governance ledger file lives.
type Paths interface {
	GovernanceLedgerPath(tenantID string) string
	TenantDir(tenantID string) string
}

// Authorization is the result of a RAIO authorization check.
type Authorization struct {
	Authorized       bool                    `json:"authorized"`
	DaysSinceCheckin int                     `json:"days_since_checkin"`
	Verdict          string                  `json:"verdict"`
	LatestEntry      *types.GovernanceRecord `json:"latest_entry,omitempty"`
}

// Ledger reads and appends RAIO check-in records.
type Ledger struct {
	Paths Paths

	mu sync.Mutex
}

// New creates a Ledger over the silo layout paths provides.
func New(paths Paths) *Ledger {
	return &Ledger{Paths: paths}
}

// RecordCheckin appends one check-in to the tenant's governance
// ledger. A zero Timestamp is stamped with the current time.
func (l *Ledger) RecordCheckin(tenantID string, rec types.GovernanceRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.readLocked(tenantID)
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("governance: marshal ledger: %w", err)
	}

	if err := os.MkdirAll(l.Paths.TenantDir(tenantID), 0755); err != nil {
		return fmt.Errorf("governance: create tenant dir: %w", err)
	}
	if err := atomicfile.Write(l.Paths.GovernanceLedgerPath(tenantID), data, ".tmp", 0644); err != nil {
		return fmt.Errorf("governance: write ledger: %w", err)
	}

	tenantLog := log.WithTenant(tenantID)
	tenantLog.Info().
		Str("raio_user_id", rec.RaioUserID).
		Msg("RAIO check-in recorded")
	return nil
}

// List returns every check-in for tenantID, oldest first.
func (l *Ledger) List(tenantID string) ([]types.GovernanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked(tenantID)
}

// IsRaioAuthorized reports whether the most recent check-in is within
// the 30-day window.
func (l *Ledger) IsRaioAuthorized(tenantID string) (*Authorization, error) {
	l.mu.Lock()
	records, err := l.readLocked(tenantID)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return &Authorization{Authorized: false, DaysSinceCheckin: -1, Verdict: VerdictNoCheckin}, nil
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}

	elapsed := time.Since(latest.Timestamp)
	auth := &Authorization{
		DaysSinceCheckin: int(elapsed.Hours() / 24),
		LatestEntry:      &latest,
	}
	if elapsed <= AuthorizationWindow {
		auth.Authorized = true
		auth.Verdict = VerdictAuthorized
	} else {
		auth.Verdict = VerdictExpired
	}
	return auth, nil
}

func (l *Ledger) readLocked(tenantID string) ([]types.GovernanceRecord, error) {
	data, err := os.ReadFile(l.Paths.GovernanceLedgerPath(tenantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("governance: read ledger: %w", err)
	}
	var records []types.GovernanceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("governance: parse ledger: %w", err)
	}
	return records, nil
}
