package chainstore

import (
	"encoding/json"
	"os"

	"github.com/sentinelgov/auditchain/pkg/atomicfile"
)

// footer is the small cached "current head" file at <ledger>.footer,
// updated after every successful append. It lets Append short-circuit
// the reverse-scan-for-'\n' algorithm when AUDIT_STRICT_FOOTER is
// set; otherwise the reverse scan remains authoritative and the footer
// is only used to detect drift.
type footer struct {
	Index     uint64 `json:"index"`
	EntryHash string `json:"entry_hash"`
}

func footerPath(ledgerPath string) string {
	return ledgerPath + ".footer"
}

func readFooter(ledgerPath string) (*footer, error) {
	b, err := os.ReadFile(footerPath(ledgerPath))
	if err != nil {
		return nil, err
	}
	var f footer
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func writeFooter(ledgerPath string, f footer) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return atomicfile.Write(footerPath(ledgerPath), b, ".footer.tmp", 0644)
}
