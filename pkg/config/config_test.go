package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFileOrEnv(t *testing.T) {
	clearAuditEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.AuditRoot)
	assert.NotEmpty(t, cfg.KeysRoot)
	assert.Empty(t, cfg.CronSecret)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearAuditEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("witness_hmac_key: from-file\naudit_root: /from/file\n"), 0644))

	t.Setenv("WITNESS_HMAC_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.WitnessHMACKey)
	assert.Equal(t, "/from/file", cfg.AuditRoot)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	clearAuditEnv(t)
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.AuditRoot)
}

func clearAuditEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CRON_SECRET", "WITNESS_HMAC_KEY", "AUDIT_ROOT", "KEYS_ROOT", "REMOTE_STORE_CREDENTIALS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}
