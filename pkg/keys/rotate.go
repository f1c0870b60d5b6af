package keys

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sentinelgov/auditchain/pkg/atomicfile"
	"github.com/sentinelgov/auditchain/pkg/linefmt"
	"github.com/sentinelgov/auditchain/pkg/log"
)

// ErrPreconditionFailed is returned by RotateKey when there is no
// existing key to rotate.
var ErrPreconditionFailed = fmt.Errorf("keys: no existing key to rotate")

// StatusChecker lets RotateKey refuse tenants the caller considers
// suspended or destroyed, without pkg/keys importing the suspension
// engine.
type StatusChecker interface {
	IsSuspendedOrDestroyed(tenantID string) bool
}

// RotationReport summarizes a completed key rotation.
type RotationReport struct {
	TenantID      string
	LinesRotated  int
	OldKeyHex     string
	NewKeyHex     string
	KeyFileViaDirectWrite bool
}

// RotateKey replaces a tenant's key in place: decrypt every line of
// ledgerPath under the current key (plaintext legacy lines pass
// through unchanged), generate a new key, re-encrypt every entry under
// it, then atomically replace first the ledger and then the key file.
//
// If the key-file rename fails after the ledger has already been
// re-encrypted under the new key, a direct (non-atomic) write is
// attempted; if that also fails the error carries the new key's hex
// encoding so an operator can recover it manually. Total failure at
// this step is a critical data-recovery incident, not a silently
// swallowed error.
func (m *Manager) RotateKey(tenantID, ledgerPath string, status StatusChecker) (*RotationReport, error) {
	if status != nil && status.IsSuspendedOrDestroyed(tenantID) {
		return nil, fmt.Errorf("keys: tenant %s is suspended or destroyed", tenantID)
	}

	lock := m.lockFor(tenantID)
	lock.Lock()
	defer lock.Unlock()

	oldKey, err := m.LoadKey(tenantID)
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, ErrPreconditionFailed
		}
		return nil, err
	}

	raw, err := os.ReadFile(ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			raw = nil
		} else {
			return nil, fmt.Errorf("keys: read ledger: %w", err)
		}
	}

	lines := splitLines(raw)

	newKey := make([]byte, KeySize)
	if _, err := rand.Read(newKey); err != nil {
		return nil, fmt.Errorf("keys: generate new key: %w", err)
	}

	var out bytes.Buffer
	rotated := 0
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var plaintext []byte
		if linefmt.IsEncrypted(line) {
			plaintext, err = linefmt.Decrypt(oldKey, line)
			if err != nil {
				return nil, fmt.Errorf("keys: decrypt line during rotation: %w", err)
			}
		} else {
			// Legacy plaintext line: re-encrypt as-is under the new key.
			plaintext = []byte(line)
		}

		enc, err := linefmt.Encrypt(newKey, plaintext)
		if err != nil {
			return nil, fmt.Errorf("keys: re-encrypt line during rotation: %w", err)
		}
		out.WriteString(enc)
		out.WriteByte('\n')
		rotated++
	}

	if err := atomicfile.Write(ledgerPath, out.Bytes(), ".rotate.tmp", 0644); err != nil {
		return nil, fmt.Errorf("keys: write rotated ledger: %w", err)
	}

	report := &RotationReport{
		TenantID:     tenantID,
		LinesRotated: rotated,
		OldKeyHex:    hex.EncodeToString(oldKey),
		NewKeyHex:    hex.EncodeToString(newKey),
	}

	keyPath := m.KeyPath(tenantID)
	if err := atomicfile.Write(keyPath, []byte(hex.EncodeToString(newKey)), ".rotate.tmp", 0600); err != nil {
		// The ledger is already re-encrypted under newKey: a failure here
		// is a critical data-recovery incident. Try a direct, non-atomic
		// write before giving up.
		if directErr := os.WriteFile(keyPath, []byte(hex.EncodeToString(newKey)), 0600); directErr != nil {
			log.Critical("keys").
				Str("tenant_id", tenantID).
				Str("new_key_hex", report.NewKeyHex).
				Err(directErr).
				Msg("key rotation left ledger re-encrypted but new key file unwritten; recover manually with new_key_hex")
			return report, fmt.Errorf(
				"keys: CRITICAL rotation failure, ledger already re-encrypted under new key %s, "+
					"key file write failed: atomic=%v direct=%v", report.NewKeyHex, err, directErr,
			)
		}
		report.KeyFileViaDirectWrite = true
	}

	tenantLog := log.WithTenant(tenantID)
	tenantLog.Info().Int("lines_rotated", rotated).Msg("tenant key rotated")
	return report, nil
}

func splitLines(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

