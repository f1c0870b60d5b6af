package chainstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// ListRawLines returns every raw line in the tenant's ledger, in
// order, exactly as stored (legacy plaintext or "ENC:..."). Used by
// key rotation and archival; it does not decrypt anything.
func (s *Store) ListRawLines(tenantID string) ([]string, error) {
	lock := s.lockFor(tenantID)
	lock.RLock()
	defer lock.RUnlock()

	return s.listRawLinesLocked(tenantID)
}

func (s *Store) listRawLinesLocked(tenantID string) ([]string, error) {
	f, err := os.Open(s.LedgerPath(tenantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chainstore: open ledger: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("chainstore: scan ledger: %w", err)
	}
	return lines, nil
}

// decodeLine parses one raw ledger line into an Entry, accepting
// either a legacy plaintext JSON object or an "ENC:" line decrypted
// under key.
func decodeLine(line string, key []byte) (types.Entry, error) {
	var raw []byte
	if linefmt.IsEncrypted(line) {
		if key == nil {
			return types.Entry{}, ErrEncryptionKeyMissing
		}
		plaintext, err := linefmt.Decrypt(key, line)
		if err != nil {
			return types.Entry{}, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
		}
		raw = plaintext
	} else {
		raw = []byte(line)
	}

	var e types.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return types.Entry{}, fmt.Errorf("chainstore: parse entry: %w", err)
	}
	return e, nil
}

// DecodeLine decrypts and parses one raw ledger line for tenantID,
// accepting legacy plaintext and "ENC:" lines alike. The integrity
// verifier uses this to attribute a decode failure to its line index
// instead of failing the whole read.
func (s *Store) DecodeLine(tenantID, line string) (types.Entry, error) {
	var key []byte
	if s.Keys != nil {
		key, _ = s.Keys.LoadKey(tenantID)
	}
	return decodeLine(line, key)
}

// ListTenants returns the sanitized tenant ids of every silo directory
// currently under the audit root. The witness cron and pulse driver
// iterate over this list.
func (s *Store) ListTenants() ([]string, error) {
	dirents, err := os.ReadDir(s.Root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chainstore: list audit root: %w", err)
	}
	var tenants []string
	for _, d := range dirents {
		if d.IsDir() {
			tenants = append(tenants, d.Name())
		}
	}
	return tenants, nil
}

// EntryCount returns the number of entries currently in tenantID's
// ledger without decrypting any of them.
func (s *Store) EntryCount(tenantID string) (uint64, error) {
	lines, err := s.ListRawLines(tenantID)
	if err != nil {
		return 0, err
	}
	return uint64(len(lines)), nil
}

// ReadAll returns every decrypted entry for tenantID, in append order.
func (s *Store) ReadAll(tenantID string) ([]types.Entry, error) {
	lock := s.lockFor(tenantID)
	lock.RLock()
	defer lock.RUnlock()

	lines, err := s.listRawLinesLocked(tenantID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	var key []byte
	if s.Keys != nil {
		key, _ = s.Keys.LoadKey(tenantID) // absence only matters if an ENC: line needs it
	}

	entries := make([]types.Entry, 0, len(lines))
	for _, line := range lines {
		e, err := decodeLine(line, key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ScanLastEntry returns the most recently appended entry, or nil for
// an empty chain. It reverse-scans the ledger file for the final line
// rather than reading the whole file, and cross-checks against the
// footer cache, logging any drift. StrictFooter does not affect it.
func (s *Store) ScanLastEntry(tenantID string) (*types.Entry, error) {
	lock := s.lockFor(tenantID)
	lock.RLock()
	defer lock.RUnlock()
	return s.scanLastEntryLocked(tenantID)
}

func (s *Store) scanLastEntryLocked(tenantID string) (*types.Entry, error) {
	ledgerPath := s.LedgerPath(tenantID)

	lastLine, err := reverseScanLastLine(ledgerPath)
	if err != nil {
		return nil, err
	}
	if lastLine == "" {
		return nil, nil
	}

	var key []byte
	if s.Keys != nil {
		key, _ = s.Keys.LoadKey(tenantID)
	}
	entry, err := decodeLine(lastLine, key)
	if err != nil {
		return nil, err
	}

	if f, ferr := readFooter(ledgerPath); ferr == nil {
		if f.Index != entry.Index || f.EntryHash != entry.EntryHash {
			tenantLog := log.WithTenant(tenantID)
			tenantLog.Warn().
				Uint64("footer_index", f.Index).
				Uint64("scan_index", entry.Index).
				Msg("footer cache drifted from reverse scan; reverse scan wins")
		}
	}

	return &entry, nil
}

// reverseScanLastLine returns the last non-empty '\n'-terminated line
// in path without reading the whole file into memory, or "" if the
// file is missing or empty.
func reverseScanLastLine(path string) (string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("chainstore: open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("chainstore: stat ledger: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return "", nil
	}

	const chunk = 4096
	var buf []byte
	pos := size
	for pos > 0 {
		readSize := int64(chunk)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize

		tmp := make([]byte, readSize)
		if _, err := f.ReadAt(tmp, pos); err != nil {
			return "", fmt.Errorf("chainstore: read ledger tail: %w", err)
		}
		buf = append(tmp, buf...)

		// Trim a single trailing newline (the file's final terminator)
		// before searching, so we don't stop at it immediately.
		search := buf
		if len(search) > 0 && search[len(search)-1] == '\n' {
			search = search[:len(search)-1]
		}
		if idx := bytes.LastIndexByte(search, '\n'); idx >= 0 {
			return string(search[idx+1:]), nil
		}
		if pos == 0 {
			return string(search), nil
		}
	}
	return "", nil
}
