// Package exit implements sovereign exit: build an encrypted archive
// of everything the silo holds, crypto-shred the silo and the tenant
// key, record the tombstone, purge remote anchors, and hand back the
// archive with a signed certificate of destruction. After the shred
// phase no key material exists server-side; the archive is the only
// copy.
package exit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgov/auditchain/pkg/canon"
	"github.com/sentinelgov/auditchain/pkg/chainstore"
	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/keys"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/tombstone"
	"github.com/sentinelgov/auditchain/pkg/types"
	"github.com/sentinelgov/auditchain/pkg/witness"
)

// Confirmation is the exact string the caller must supply.
const Confirmation = "PERMANENTLY DELETE ALL DATA"

// MinPassphraseLen is the minimum archive passphrase length.
const MinPassphraseLen = 12

var (
	// ErrPreconditionFailed rejects a passphrase shorter than
	// MinPassphraseLen.
	ErrPreconditionFailed = errors.New("exit: passphrase must be at least 12 characters")

	// ErrConfirmationRequired rejects a wrong or missing confirmation
	// string.
	ErrConfirmationRequired = errors.New("exit: confirmation string does not match")

	// ErrTenantDestroyed rejects a second exit for an already
	// tombstoned tenant.
	ErrTenantDestroyed = errors.New("exit: tenant has already been destroyed")
)

// Request is one sovereign-exit invocation. ClientBundle is whatever
// product-side data the caller wants preserved in the archive
// (baseline configuration, agent config, procurement data).
type Request struct {
	TenantID     string
	OwnerUID     string
	Passphrase   string
	Confirmation string
	ClientBundle map[string]interface{}
}

// Engine executes sovereign exits.
type Engine struct {
	Chain      *chainstore.Store
	Keys       *keys.Manager
	Verifier   *integrity.Verifier
	Remote     remotestore.Store
	Tombstones *tombstone.Registry
	Keyring    *witness.Keyring
}

// SovereignExit runs the four ordered phases and returns the encrypted
// archive bytes plus the signed deletion certificate. Once phase 2 has
// begun the operation is not cancellation-safe: it runs to completion
// to preserve the on-disk invariants.
func (e *Engine) SovereignExit(req Request) ([]byte, *types.DeletionCertificate, error) {
	if len(req.Passphrase) < MinPassphraseLen {
		return nil, nil, ErrPreconditionFailed
	}
	if req.Confirmation != Confirmation {
		return nil, nil, ErrConfirmationRequired
	}
	if destroyed, err := e.Tombstones.Contains(req.TenantID); err != nil {
		return nil, nil, fmt.Errorf("exit: consult tombstone registry: %w", err)
	} else if destroyed {
		return nil, nil, ErrTenantDestroyed
	}

	timer := metrics.NewTimer()
	certificateID := uuid.NewString()

	// Phase 1: build the archive entirely in memory, before anything
	// on disk is touched.
	report, err := e.Verifier.Verify(req.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("exit: pre-destruction verify: %w", err)
	}

	entries, err := e.Chain.ReadAll(req.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("exit: read chain entries: %w", err)
	}

	rawFiles, inventory, totalBytes, err := e.collectRawFiles(req.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("exit: collect silo files: %w", err)
	}

	envelope := map[string]interface{}{
		"_archive_metadata": map[string]interface{}{
			"tenant_id":       req.TenantID,
			"certificate_id":  certificateID,
			"exported_at":     time.Now().UTC().Format(time.RFC3339Nano),
			"chain_valid":     report.Valid,
			"chain_head_hash": report.ChainHeadHash,
			"entry_count":     report.TotalEntries,
			"format":          "gzip+aes-256-gcm+pbkdf2-sha256",
		},
		"audit_log_entries": entries,
		"audit_raw_files":   rawFiles,
		"client_data":       req.ClientBundle,
	}
	plaintext, err := json.Marshal(envelope)
	if err != nil {
		return nil, nil, fmt.Errorf("exit: marshal archive envelope: %w", err)
	}
	archive, err := sealArchive(plaintext, req.Passphrase)
	if err != nil {
		return nil, nil, err
	}

	// Phase 2: crypto-shred. From here on there is no turning back;
	// cancellation is ignored until the silo and key are gone.
	allNull, shredded, err := e.shredSilo(req.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("exit: crypto-shred: %w", err)
	}
	if err := e.Keys.DestroyKey(req.TenantID); err != nil {
		return nil, nil, fmt.Errorf("exit: destroy tenant key: %w", err)
	}
	if e.Keys.HasKey(req.TenantID) {
		allNull = false
	}

	shredProof, err := canon.SHA256Hex(map[string]interface{}{
		"tenant_id":      req.TenantID,
		"certificate_id": certificateID,
		"inventory":      inventory,
		"bytes_shredded": shredded,
		"paths_null":     allNull,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("exit: compute shred proof: %w", err)
	}

	now := time.Now().UTC()
	if err := e.Tombstones.Append(types.Tombstone{
		TenantID:      req.TenantID,
		CertificateID: certificateID,
		FinalRootHash: report.ChainHeadHash,
		EntryCount:    report.TotalEntries,
		ByteCount:     totalBytes,
		DestroyedAt:   now,
	}); err != nil {
		return nil, nil, fmt.Errorf("exit: record tombstone: %w", err)
	}

	// Phase 3: purge remote state. Best-effort: a partial purge is
	// logged and the exit still completes.
	tenantLog := log.WithTenant(req.TenantID)
	if purged, err := e.Remote.PurgeAnchors(req.TenantID); err != nil {
		tenantLog.Error().Err(err).
			Int("anchors_purged", purged).
			Msg("partial remote anchor purge during sovereign exit")
	}
	if err := e.Remote.MarkDestroyed(req.TenantID, req.OwnerUID); err != nil {
		tenantLog.Error().Err(err).
			Msg("failed to mark tenant destroyed in remote store")
	}

	// Phase 4: deliver.
	cert := &types.DeletionCertificate{
		CertificateID:        certificateID,
		TenantID:             req.TenantID,
		IssuedAt:             now,
		ArtifactInventory:    inventory,
		TotalBytesShredded:   shredded,
		AllPathsVerifiedNull: allNull,
		CryptoShredProof:     shredProof,
		FinalRootHash:        report.ChainHeadHash,
		EntryCount:           report.TotalEntries,
	}
	if _, sig, err := e.Keyring.Sign(certSignable(cert)); err == nil {
		cert.Signature = sig
	} else {
		return nil, nil, fmt.Errorf("exit: sign deletion certificate: %w", err)
	}

	timer.ObserveDuration(metrics.SovereignExitDuration)
	metrics.SovereignExitsTotal.Inc()
	tenantLog.Warn().
		Str("certificate_id", certificateID).
		Int64("bytes_shredded", shredded).
		Bool("all_paths_verified_null", allNull).
		Msg("sovereign exit completed")

	return archive, cert, nil
}

// collectRawFiles reads every file in the silo as-is for the archive's
// audit_raw_files section and returns the inventory and byte total.
func (e *Engine) collectRawFiles(tenantID string) (map[string]string, []string, int64, error) {
	dir := e.Chain.TenantDir(tenantID)
	dirents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]string{}, nil, 0, nil
	}
	if err != nil {
		return nil, nil, 0, err
	}

	rawFiles := make(map[string]string)
	var inventory []string
	var total int64
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		path := filepath.Join(dir, d.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, 0, err
		}
		rawFiles[d.Name()] = string(data)
		inventory = append(inventory, path)
		total += int64(len(data))
	}
	return rawFiles, inventory, total, nil
}

// shredSilo overwrites every file in the silo with CSPRNG bytes,
// fsyncs, unlinks, removes the directory, and re-stats every path.
func (e *Engine) shredSilo(tenantID string) (allNull bool, shredded int64, err error) {
	dir := e.Chain.TenantDir(tenantID)
	dirents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	var paths []string
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		path := filepath.Join(dir, d.Name())
		info, err := os.Stat(path)
		if err != nil {
			return false, shredded, err
		}
		if err := keys.ShredFile(path, info.Size()); err != nil {
			return false, shredded, err
		}
		shredded += info.Size()
		paths = append(paths, path)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, shredded, err
	}

	allNull = true
	for _, path := range append(paths, dir) {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			allNull = false
		}
	}
	return allNull, shredded, nil
}

// certSignable is the canonical subset the certificate signature
// covers.
func certSignable(c *types.DeletionCertificate) map[string]interface{} {
	return map[string]interface{}{
		"certificate_id":          c.CertificateID,
		"tenant_id":               c.TenantID,
		"issued_at":               c.IssuedAt.Format(time.RFC3339Nano),
		"final_root_hash":         c.FinalRootHash,
		"entry_count":             c.EntryCount,
		"total_bytes_shredded":    c.TotalBytesShredded,
		"all_paths_verified_null": c.AllPathsVerifiedNull,
		"crypto_shred_proof":      c.CryptoShredProof,
	}
}
