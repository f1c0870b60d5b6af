// Package atomicfile implements the write-fsync-rename discipline used
// throughout the audit-chain subsystem for any file whose readers must
// never observe a partial write: the ledger, the governance ledger,
// tenant key files, and rotation's temporary copies of both.
package atomicfile

import (
	"fmt"
	"os"
)

// Write creates tmpSuffix next to path, writes data, fsyncs, closes,
// then renames it onto path. Rename-over-existing-file is assumed
// atomic on the target filesystem, which is an operational requirement
// of the deployment; the temp file is removed on any error path.
func Write(path string, data []byte, tmpSuffix string, mode os.FileMode) error {
	tmp := path + tmpSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("atomicfile: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: rename temp file into place: %w", err)
	}
	return nil
}
