// Package pulse writes the periodic uptime heartbeat into every
// tenant's chain and detects continuity gaps: a changed process
// identity, missing recorded state, or more than twice the pulse
// period elapsing since the last pulse. A detected gap writes a
// SYSTEM_RECOVERY entry per tenant before the PULSE itself.
package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelgov/auditchain/pkg/atomicfile"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// DefaultPeriod is the default pulse interval. The daemon refuses
// anything above 10 minutes.
const DefaultPeriod = 5 * time.Minute

// Writer is the subset of pkg/audit.Logger the driver needs.
type Writer interface {
	WritePulse(tenantID string, sequence uint64, processID string) (*types.Entry, error)
	WriteSystemRecovery(tenantID string, sequence uint64, processID, gapDuration, gapReason string) (*types.Entry, error)
}

// TenantLister enumerates the tenant silos to pulse.
type TenantLister interface {
	ListTenants() ([]string, error)
}

// Identity is the process identity minted once at startup. A restart
// mints a new one, which the gap check detects.
type Identity struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// NewIdentity mints this process's pulse identity.
func NewIdentity() Identity {
	return Identity{
		ID:        uuid.NewString(),
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
	}
}

// state is the process-wide pulse state persisted across restarts at
// <audit_root>/pulse_state.json.
type state struct {
	ProcessID    string    `json:"process_id"`
	LastPulseAt  time.Time `json:"last_pulse_at"`
	LastSequence uint64    `json:"last_sequence"`
}

// Config tunes the driver. Both the period and the gap multiplier are
// tunable rather than fixed; the relationship between the two and the
// cron interval is an operational decision.
type Config struct {
	// Period between pulses. Defaults to DefaultPeriod.
	Period time.Duration

	// GapMultiplier: elapsed > GapMultiplier*Period counts as a gap.
	// Defaults to 2.
	GapMultiplier float64
}

// Driver writes pulses for every tenant on a fixed period.
type Driver struct {
	Writer  Writer
	Tenants TenantLister

	cfg       Config
	identity  Identity
	statePath string

	mu       sync.Mutex
	loaded   bool
	sequence uint64
	lastAt   time.Time
}

// NewDriver creates a Driver persisting its state under auditRoot.
func NewDriver(writer Writer, tenants TenantLister, auditRoot string, cfg Config) *Driver {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.GapMultiplier <= 0 {
		cfg.GapMultiplier = 2
	}
	return &Driver{
		Writer:    writer,
		Tenants:   tenants,
		cfg:       cfg,
		identity:  NewIdentity(),
		statePath: filepath.Join(auditRoot, "pulse_state.json"),
	}
}

// Identity returns the driver's process identity.
func (d *Driver) Identity() Identity {
	return d.identity
}

// LastRun returns when the most recent pulse round completed, or the
// zero time if none has run in this process yet. The daemon's health
// probe uses this to detect a stalled pulse loop.
func (d *Driver) LastRun() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastAt
}

// Summary reports one pulse round.
type Summary struct {
	Sequence   uint64   `json:"sequence"`
	Tenants    int      `json:"tenants"`
	Pulsed     int      `json:"pulsed"`
	Recovered  int      `json:"recovered"`
	GapReason  string   `json:"gap_reason,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// RunOnce performs one pulse round across every tenant: a gap check
// against the recorded state, SYSTEM_RECOVERY per tenant if the check
// fails, then the PULSE.
func (d *Driver) RunOnce() (*Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	gapReason, gapDuration := d.detectGapLocked()

	tenants, err := d.Tenants.ListTenants()
	if err != nil {
		return nil, fmt.Errorf("pulse: list tenants: %w", err)
	}

	d.sequence++
	seq := d.sequence

	summary := &Summary{Sequence: seq, Tenants: len(tenants), GapReason: gapReason}
	for _, tenantID := range tenants {
		if gapReason != "" {
			if _, err := d.Writer.WriteSystemRecovery(tenantID, seq, d.identity.ID, gapDuration, gapReason); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: recovery: %v", tenantID, err))
				continue
			}
			summary.Recovered++
		}
		if _, err := d.Writer.WritePulse(tenantID, seq, d.identity.ID); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: pulse: %v", tenantID, err))
			continue
		}
		summary.Pulsed++
	}

	d.lastAt = time.Now().UTC()
	pulseLog := log.WithComponent("pulse")
	if err := d.persistLocked(); err != nil {
		pulseLog.Warn().Err(err).Msg("failed to persist pulse state")
	}

	if gapReason != "" {
		pulseLog.Warn().
			Str("gap_reason", gapReason).
			Str("gap_duration", gapDuration).
			Uint64("sequence", seq).
			Msg("pulse continuity gap detected; system recovery written")
	}
	return summary, nil
}

// Run pulses on the configured period until ctx is done.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Period)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(); err != nil {
			pulseLog := log.WithComponent("pulse")
			pulseLog.Error().Err(err).Msg("pulse round failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// detectGapLocked inspects the recorded process-wide state on the
// first round of this process, and in-memory state afterwards.
func (d *Driver) detectGapLocked() (reason, duration string) {
	if !d.loaded {
		d.loaded = true
		st, err := d.readState()
		if err != nil {
			if os.IsNotExist(err) {
				return "pulse state missing", ""
			}
			return "pulse state unreadable", ""
		}
		d.sequence = st.LastSequence
		elapsed := time.Since(st.LastPulseAt)
		if st.ProcessID != d.identity.ID {
			return "process identity changed", elapsed.Round(time.Second).String()
		}
		if float64(elapsed) > d.cfg.GapMultiplier*float64(d.cfg.Period) {
			return "elapsed exceeds gap threshold", elapsed.Round(time.Second).String()
		}
		return "", ""
	}

	if d.lastAt.IsZero() {
		return "", ""
	}
	elapsed := time.Since(d.lastAt)
	if float64(elapsed) > d.cfg.GapMultiplier*float64(d.cfg.Period) {
		return "elapsed exceeds gap threshold", elapsed.Round(time.Second).String()
	}
	return "", ""
}

func (d *Driver) readState() (*state, error) {
	data, err := os.ReadFile(d.statePath)
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("pulse: parse state: %w", err)
	}
	return &st, nil
}

func (d *Driver) persistLocked() error {
	st := state{
		ProcessID:    d.identity.ID,
		LastPulseAt:  d.lastAt,
		LastSequence: d.sequence,
	}
	data, err := json.Marshal(&st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.statePath), 0755); err != nil {
		return err
	}
	return atomicfile.Write(d.statePath, data, ".tmp", 0644)
}
