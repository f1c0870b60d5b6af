package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sentinelgov/auditchain/pkg/metrics"
	"github.com/sentinelgov/auditchain/pkg/types"
)

// AdminAccessRequest records one internal administrator touching a
// tenant's data.
type AdminAccessRequest struct {
	AdminEmail string
	AdminName  string
	TenantID   string
	Action     types.AdminAction
	Purpose    string
}

// adminActivityRecord is one line of the process-wide admin activity
// mirror at <root>/admin_access.log. It shares the receipt id and
// timestamp of the ADMIN_ACCESS entry on the target tenant's chain.
type adminActivityRecord struct {
	Kind       string            `json:"kind"` // always "ADMIN_ACTIVITY"
	Timestamp  time.Time         `json:"timestamp"`
	ReceiptID  string            `json:"receipt_id"`
	AdminEmail string            `json:"admin_email"`
	AdminName  string            `json:"admin_name,omitempty"`
	TenantID   string            `json:"tenant_id"`
	Action     types.AdminAction `json:"action"`
	Purpose    string            `json:"purpose"`
}

// LogAdminAccess appends an ADMIN_ACCESS (AUDIT_SHIELD) entry to the
// target tenant's chain and mirrors it into the process-wide admin
// activity log, both carrying the same receipt id and timestamp. If
// either write fails the whole operation fails and the caller MUST
// refuse to return the underlying tenant data.
func (l *Logger) LogAdminAccess(req AdminAccessRequest) (*types.Entry, error) {
	switch req.Action {
	case types.AdminActionView, types.AdminActionDownload, types.AdminActionExport:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	entry, err := l.append(req.TenantID, types.Entry{
		Kind:           types.KindAdminAccess,
		AdminEmail:     req.AdminEmail,
		AdminName:      req.AdminName,
		Action:         req.Action,
		Purpose:        req.Purpose,
		TargetTenantID: req.TenantID,
	})
	if err != nil {
		return nil, err
	}

	mirror := adminActivityRecord{
		Kind:       "ADMIN_ACTIVITY",
		Timestamp:  entry.Timestamp,
		ReceiptID:  entry.ReceiptID,
		AdminEmail: req.AdminEmail,
		AdminName:  req.AdminName,
		TenantID:   req.TenantID,
		Action:     req.Action,
		Purpose:    req.Purpose,
	}
	if err := l.appendAdminActivity(mirror); err != nil {
		return nil, fmt.Errorf("audit: admin activity mirror write failed, access must be refused: %w", err)
	}

	metrics.AdminAccessTotal.WithLabelValues(string(req.Action)).Inc()
	return entry, nil
}

func (l *Logger) appendAdminActivity(rec adminActivityRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	l.adminMu.Lock()
	defer l.adminMu.Unlock()

	if err := os.MkdirAll(l.Chain.Root, 0755); err != nil {
		return fmt.Errorf("create audit root: %w", err)
	}
	f, err := os.OpenFile(l.AdminLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open admin log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return f.Sync()
}

// ReadAdminActivity returns every line of the process-wide admin
// activity mirror, oldest first.
func (l *Logger) ReadAdminActivity() ([]map[string]interface{}, error) {
	data, err := os.ReadFile(l.AdminLogPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: read admin log: %w", err)
	}

	var out []map[string]interface{}
	for _, line := range splitNonEmptyLines(data) {
		var rec map[string]interface{}
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("audit: parse admin log line: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func splitNonEmptyLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
