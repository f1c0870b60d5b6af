package canon

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/sentinelgov/auditchain/pkg/types"
)

// Receipt kind prefixes. Fixed: receipt ids are parsed by kind
// prefix downstream.
const (
	PrefixToolExecution  = "AR-"
	PrefixAdminAccess    = "AS-"
	PrefixPulse          = "PL-"
	PrefixSystemRecovery = "SR-"
	PrefixSuspend        = "SUSPEND-"
	PrefixRaioCheckin    = "RAIO-"
)

// NewReceiptID builds a time-sortable receipt id: <prefix><hex ms
// timestamp>-<hex random suffix>. The random suffix carries at least 32
// bits of entropy, enough that two receipts for the same tenant in the
// same millisecond collide only with overwhelming improbability.
func NewReceiptID(prefix string, at time.Time) (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("canon: generate receipt suffix: %w", err)
	}
	ms := uint64(at.UnixMilli())
	return fmt.Sprintf("%s%08X-%08X", prefix, ms, binary.BigEndian.Uint32(suffix[:])), nil
}

// ReceiptPrefixFor returns the fixed receipt-id prefix for an entry
// kind.
func ReceiptPrefixFor(kind types.EntryKind) string {
	switch kind {
	case types.KindToolExecution:
		return PrefixToolExecution
	case types.KindAdminAccess:
		return PrefixAdminAccess
	case types.KindPulse:
		return PrefixPulse
	case types.KindSystemRecovery:
		return PrefixSystemRecovery
	case types.KindSuspend:
		return PrefixSuspend
	case types.KindRaioCheckin:
		return PrefixRaioCheckin
	default:
		return "XX-"
	}
}

// SanitizeTenantID maps an arbitrary tenant id to a safe file-system
// component: [^a-zA-Z0-9_-] becomes '_', truncated to 64 bytes. An
// empty result maps to "_global".
func SanitizeTenantID(tenantID string) string {
	var b strings.Builder
	for _, r := range tenantID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if len(s) > 64 {
		s = s[:64]
	}
	if s == "" {
		return "_global"
	}
	return s
}
