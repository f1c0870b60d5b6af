package chainstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sentinelgov/auditchain/pkg/canon"
	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// lastTimestamp tracks, per tenant, the timestamp of the most recently
// appended entry in this process, enough to enforce the never-decrease
// rule even when the OS clock moves backwards. Guarded by its own
// mutex since it is shared across every tenant's otherwise-independent
// per-tenant append lock.
var lastTimestamp = struct {
	mu     sync.Mutex
	values map[string]time.Time
}{values: make(map[string]time.Time)}

// Append assigns index, timestamp, receipt id, prev_hash and
// entry_hash to payload and durably writes it as the next line of
// tenantID's ledger. Either the '\n'-terminated encrypted line is
// fsynced and visible on the next read, or Append returns an error and
// nothing was written.
func (s *Store) Append(tenantID string, payload types.Entry) (*types.Entry, error) {
	lock := s.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.checkNotDestroyed(tenantID); err != nil {
		return nil, err
	}

	var prevHash string
	var nextIndex uint64
	headKnown := false

	// StrictFooter trusts the cached head outright, skipping both the
	// reverse scan and the previous-entry hash recompute.
	if s.StrictFooter {
		if f, ferr := readFooter(s.LedgerPath(tenantID)); ferr == nil {
			prevHash = f.EntryHash
			nextIndex = f.Index + 1
			headKnown = true
		}
	}

	if !headKnown {
		last, err := s.scanLastEntryLocked(tenantID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCriticalIntegrityFailure, err)
		}
		if last == nil {
			prevHash = types.GenesisHash
			nextIndex = 0
		} else {
			computedHash, herr := canon.EntryHash(*last)
			if herr != nil {
				return nil, fmt.Errorf("%w: recompute previous entry hash: %v", ErrCriticalIntegrityFailure, herr)
			}
			if computedHash != last.EntryHash {
				return nil, fmt.Errorf("%w: previous entry at index %d no longer hashes to its stored entry_hash",
					ErrCriticalIntegrityFailure, last.Index)
			}
			prevHash = last.EntryHash
			nextIndex = last.Index + 1
		}
	}

	entry := payload
	entry.Index = nextIndex
	entry.PrevHash = prevHash
	entry.Timestamp = s.nextTimestamp(tenantID)

	prefix := canon.ReceiptPrefixFor(entry.Kind)
	receiptID, err := canon.NewReceiptID(prefix, entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: generate receipt id: %v", ErrAuditWrite, err)
	}
	entry.ReceiptID = receiptID

	entryHash, err := canon.EntryHash(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: compute entry hash: %v", ErrAuditWrite, err)
	}
	entry.EntryHash = entryHash

	plaintext, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal entry: %v", ErrAuditWrite, err)
	}
	if len(plaintext) > s.maxLineBytes() {
		return nil, fmt.Errorf("%w: %w: %d bytes exceeds maximum of %d", ErrAuditWrite, ErrLineTooLarge, len(plaintext), s.maxLineBytes())
	}

	if s.Keys == nil {
		return nil, ErrEncryptionKeyMissing
	}
	key, err := s.Keys.LoadKey(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionKeyMissing, err)
	}

	line, err := linefmt.Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypt entry: %v", ErrAuditWrite, err)
	}

	if err := s.ensureTenantDir(tenantID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}

	f, err := os.OpenFile(s.LedgerPath(tenantID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open ledger: %v", ErrAuditWrite, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return nil, fmt.Errorf("%w: write entry: %v", ErrAuditWrite, err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("%w: fsync ledger: %v", ErrAuditWrite, err)
	}

	if err := writeFooter(s.LedgerPath(tenantID), footer{Index: entry.Index, EntryHash: entry.EntryHash}); err != nil {
		tenantLog := log.WithTenant(tenantID)
		tenantLog.Warn().Err(err).Msg("failed to update footer cache after append")
	}

	s.recordTimestamp(tenantID, entry.Timestamp)
	return &entry, nil
}

func (s *Store) nextTimestamp(tenantID string) time.Time {
	lastTimestamp.mu.Lock()
	defer lastTimestamp.mu.Unlock()

	now := time.Now().UTC()
	prev, ok := lastTimestamp.values[tenantID]
	if ok && !now.After(prev) {
		metrics.ClockRegressionsTotal.Inc()
		tenantLog := log.WithTenant(tenantID)
		tenantLog.Warn().
			Time("wall_clock", now).
			Time("previous_entry", prev).
			Msg("wall clock at or behind previous entry; using previous plus 1ms")
		return prev.Add(time.Millisecond)
	}
	return now
}

func (s *Store) recordTimestamp(tenantID string, t time.Time) {
	lastTimestamp.mu.Lock()
	defer lastTimestamp.mu.Unlock()
	lastTimestamp.values[tenantID] = t
}
