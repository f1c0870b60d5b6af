// Package bootstrap wires the audit-chain component graph from a
// loaded configuration. Both binaries (the operator CLI and the
// daemon) build the same stack; only which pieces they drive differs.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/sentinelgov/auditchain/pkg/audit"
	"github.com/sentinelgov/auditchain/pkg/chainstore"
	"github.com/sentinelgov/auditchain/pkg/config"
	"github.com/sentinelgov/auditchain/pkg/exit"
	"github.com/sentinelgov/auditchain/pkg/governance"
	"github.com/sentinelgov/auditchain/pkg/integrity"
	"github.com/sentinelgov/auditchain/pkg/keys"
	"github.com/sentinelgov/auditchain/pkg/log"
	"github.com/sentinelgov/auditchain/pkg/pulse"
	"github.com/sentinelgov/auditchain/pkg/remotestore"
	"github.com/sentinelgov/auditchain/pkg/suspension"
	"github.com/sentinelgov/auditchain/pkg/tombstone"
	"github.com/sentinelgov/auditchain/pkg/witness"
)

// Stack is the fully wired subsystem.
type Stack struct {
	Config     config.Config
	Chain      *chainstore.Store
	Keys       *keys.Manager
	Tombstones *tombstone.Registry
	Verifier   *integrity.Verifier
	Remote     remotestore.Store
	Keyring    *witness.Keyring
	Witness    *witness.Witness
	Governance *governance.Ledger
	Suspension *suspension.Engine
	Logger     *audit.Logger
	Exit       *exit.Engine
}

// New wires a Stack from cfg. WITNESS_HMAC_KEY is required: anchors,
// tombstones and deletion certificates are all signed under it. The
// remote store driver is chosen by RemoteStoreCredentials: empty means
// NullStore (local-only operation), anything else is treated as the
// data directory of the bbolt reference driver.
func New(cfg config.Config) (*Stack, error) {
	if cfg.WitnessHMACKey == "" {
		return nil, fmt.Errorf("bootstrap: WITNESS_HMAC_KEY is required")
	}
	hmacKey := []byte(cfg.WitnessHMACKey)

	var remote remotestore.Store
	if cfg.RemoteStoreCredentials == "" {
		bootstrapLog := log.WithComponent("bootstrap")
		bootstrapLog.Warn().
			Msg("REMOTE_STORE_CREDENTIALS unset; anchors and tenant status are local-only (null remote store)")
		remote = remotestore.NullStore{}
	} else {
		bolt, err := remotestore.NewBoltStore(cfg.RemoteStoreCredentials)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open remote store: %w", err)
		}
		remote = bolt
	}

	tombstones := tombstone.New(cfg.AuditRoot, hmacKey)
	keyManager := keys.NewManager(cfg.KeysRoot, tombstones)
	chain := chainstore.New(cfg.AuditRoot, keyManager, tombstones)
	chain.StrictFooter = cfg.StrictFooter
	verifier := integrity.New(chain)
	keyring := witness.NewKeyring(hmacKey)
	gov := governance.New(chain)

	wit := &witness.Witness{
		Verifier: verifier,
		Chain:    chain,
		Remote:   remote,
		Keyring:  keyring,
	}

	// The suspension engine doubles as the tenant-status provider the
	// façade gates on; construct them together.
	stack := &Stack{
		Config:     cfg,
		Chain:      chain,
		Keys:       keyManager,
		Tombstones: tombstones,
		Verifier:   verifier,
		Remote:     remote,
		Keyring:    keyring,
		Witness:    wit,
		Governance: gov,
	}

	engine := suspension.New(verifier, remote, nil)
	logger := audit.New(chain, engine, gov)
	engine.Logger = logger
	stack.Suspension = engine
	stack.Logger = logger

	stack.Exit = &exit.Engine{
		Chain:      chain,
		Keys:       keyManager,
		Verifier:   verifier,
		Remote:     remote,
		Tombstones: tombstones,
		Keyring:    keyring,
	}

	return stack, nil
}

// NewPulseDriver builds the uptime pulse driver over the stack's
// façade. A non-positive period uses the pulse package default.
func (s *Stack) NewPulseDriver(period time.Duration) *pulse.Driver {
	return pulse.NewDriver(s.Logger, s.Chain, s.Config.AuditRoot, pulse.Config{Period: period})
}

// Close releases the stack's resources.
func (s *Stack) Close() error {
	return s.Remote.Close()
}
