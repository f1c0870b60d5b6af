package canon

import "github.com/sentinelgov/auditchain/pkg/types"

// EntryHash computes entry_hash = SHA256(canonical_json(entry without
// entry_hash)). The caller's entry is copied so the original EntryHash
// field (if any) is untouched.
func EntryHash(e types.Entry) (string, error) {
	e.EntryHash = ""
	return SHA256Hex(e)
}
