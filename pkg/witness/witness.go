// Package witness periodically anchors every tenant's chain head to
// the remote document store, HMAC-signed under a server-wide key, and
// verifies the local chain against the most recent anchor. An anchor
// is a commitment: once stored remotely, a later truncation or rewrite
// of the local chain is detectable even if the attacker holds the
// tenant's encryption key.
package witness

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// Verdict strings are stable; collaborators surface them verbatim.
const (
	VerdictMatch       = "MATCH"
	VerdictLocalAhead  = "LOCAL_AHEAD_OF_ANCHOR"
	VerdictMismatch    = "MISMATCH"
	VerdictNoAnchor    = "NO_ANCHOR"
	VerdictLocalBroken = "LOCAL_BROKEN"
)

// Chain is the subset of pkg/chainstore.Store the witness reads.
type Chain interface {
	ListTenants() ([]string, error)
	ReadAll(tenantID string) ([]types.Entry, error)
}

// Witness anchors chains and verifies them against their anchors.
type Witness struct {
	Verifier *integrity.Verifier
	Chain    Chain
	Remote   remotestore.Store
	Keyring  *Keyring

	// Budget is the wall-clock limit for one AnchorAllTenants run.
	// Tenants not reached before it elapses are reported as errors and
	// picked up on the next run. Zero means no limit.
	Budget time.Duration
}

// TenantResult is one tenant's outcome within an anchor run.
type TenantResult struct {
	TenantID   string `json:"tenant_id"`
	Status     string `json:"status"` // "anchored", "error", "timeout"
	AnchorID   string `json:"anchor_id,omitempty"`
	ChainValid bool   `json:"chain_valid"`
	Error      string `json:"error,omitempty"`
}

// RunSummary is the JSON summary the cron endpoint returns.
type RunSummary struct {
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Summary     struct {
		TotalTenants int `json:"total_tenants"`
		Anchored     int `json:"anchored"`
		Errors       int `json:"errors"`
	} `json:"summary"`
	Results []TenantResult `json:"results"`
}

// Verification is the outcome of comparing the local chain to its
// latest remote anchor.
type Verification struct {
	TenantID            string    `json:"tenant_id"`
	Verdict             string    `json:"verdict"`
	LocalIntegrityValid bool      `json:"local_integrity_valid"`
	WitnessMatch        bool      `json:"witness_match"`
	SignatureValid      bool      `json:"signature_valid"`
	LocalChainHead      string    `json:"local_chain_head"`
	AnchorChainHead     string    `json:"anchor_chain_head,omitempty"`
	CheckedAt           time.Time `json:"checked_at"`
}

// AnchorAllTenants iterates every tenant silo on disk, verifies its
// chain, and persists a signed anchor to the remote store.
func (w *Witness) AnchorAllTenants() (*RunSummary, error) {
	summary := &RunSummary{Status: "completed", StartedAt: time.Now().UTC()}

	tenants, err := w.Chain.ListTenants()
	if err != nil {
		summary.Status = "failed"
		summary.CompletedAt = time.Now().UTC()
		return summary, fmt.Errorf("witness: list tenants: %w", err)
	}
	summary.Summary.TotalTenants = len(tenants)

	deadline := time.Time{}
	if w.Budget > 0 {
		deadline = summary.StartedAt.Add(w.Budget)
	}

	for _, tenantID := range tenants {
		if !deadline.IsZero() && time.Now().After(deadline) {
			summary.Results = append(summary.Results, TenantResult{
				TenantID: tenantID,
				Status:   "timeout",
				Error:    "anchor run exceeded its wall-clock budget",
			})
			summary.Summary.Errors++
			continue
		}

		result := w.anchorOne(tenantID)
		summary.Results = append(summary.Results, result)
		if result.Status == "anchored" {
			summary.Summary.Anchored++
			metrics.WitnessAnchorsTotal.WithLabelValues("anchored").Inc()
		} else {
			summary.Summary.Errors++
			metrics.WitnessAnchorsTotal.WithLabelValues("error").Inc()
		}
	}

	summary.CompletedAt = time.Now().UTC()
	witnessLog := log.WithComponent("witness")
	witnessLog.Info().
		Int("total", summary.Summary.TotalTenants).
		Int("anchored", summary.Summary.Anchored).
		Int("errors", summary.Summary.Errors).
		Msg("anchor run completed")
	return summary, nil
}

func (w *Witness) anchorOne(tenantID string) TenantResult {
	report, err := w.Verifier.Verify(tenantID)
	if err != nil {
		return TenantResult{TenantID: tenantID, Status: "error", Error: err.Error()}
	}

	now := time.Now().UTC()
	anchor := &types.Anchor{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		AnchorDate:      now.Format("2006-01-02"),
		AnchoredAt:      now,
		ChainHeadHash:   report.ChainHeadHash,
		ChainValid:      report.Valid,
		VerifiedEntries: report.VerifiedEntries,
		TotalEntries:    report.TotalEntries,
	}

	keyID, sig, err := w.Keyring.Sign(anchorSignable(anchor))
	if err != nil {
		return TenantResult{TenantID: tenantID, Status: "error", ChainValid: report.Valid, Error: err.Error()}
	}
	anchor.KeyID = keyID
	anchor.Signature = sig

	if err := w.Remote.PutAnchor(anchor); err != nil {
		return TenantResult{TenantID: tenantID, Status: "error", ChainValid: report.Valid, Error: err.Error()}
	}

	return TenantResult{
		TenantID:   tenantID,
		Status:     "anchored",
		AnchorID:   anchor.ID,
		ChainValid: report.Valid,
	}
}

// VerifyWitness compares tenantID's current chain head with its latest
// remote anchor. LOCAL_AHEAD_OF_ANCHOR is the expected state between
// anchor runs: the anchored head must still appear somewhere in the
// local chain, i.e. the local chain extends the anchored prefix.
func (w *Witness) VerifyWitness(tenantID string) (*Verification, *types.Anchor, error) {
	v := &Verification{TenantID: tenantID, CheckedAt: time.Now().UTC()}

	report, err := w.Verifier.Verify(tenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("witness: verify local chain: %w", err)
	}
	v.LocalIntegrityValid = report.Valid
	v.LocalChainHead = report.ChainHeadHash

	anchor, err := w.Remote.LatestAnchor(tenantID)
	if err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			if !report.Valid {
				v.Verdict = VerdictLocalBroken
			} else {
				v.Verdict = VerdictNoAnchor
			}
			return v, nil, nil
		}
		return nil, nil, fmt.Errorf("witness: fetch latest anchor: %w", err)
	}
	v.AnchorChainHead = anchor.ChainHeadHash
	v.SignatureValid = w.Keyring.Verify(anchor.KeyID, anchorSignable(anchor), anchor.Signature) == nil

	if !report.Valid {
		v.Verdict = VerdictLocalBroken
		return v, anchor, nil
	}

	if report.ChainHeadHash == anchor.ChainHeadHash {
		v.Verdict = VerdictMatch
		v.WitnessMatch = true
		return v, anchor, nil
	}

	ahead, err := w.localChainContains(tenantID, anchor.ChainHeadHash)
	if err != nil {
		return nil, anchor, fmt.Errorf("witness: scan local chain: %w", err)
	}
	if ahead {
		v.Verdict = VerdictLocalAhead
		v.WitnessMatch = true
		return v, anchor, nil
	}

	v.Verdict = VerdictMismatch
	return v, anchor, nil
}

func (w *Witness) localChainContains(tenantID, headHash string) (bool, error) {
	if headHash == types.GenesisHash {
		return true, nil
	}
	entries, err := w.Chain.ReadAll(tenantID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.EntryHash == headHash {
			return true, nil
		}
	}
	return false, nil
}

// anchorSignable is the canonical subset an anchor signature covers.
func anchorSignable(a *types.Anchor) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":        a.TenantID,
		"anchor_date":      a.AnchorDate,
		"chain_head_hash":  a.ChainHeadHash,
		"verified_entries": a.VerifiedEntries,
		"total_entries":    a.TotalEntries,
	}
}
