// Package config centralizes the audit-chain subsystem's runtime
// configuration: the environment variables the deployment sets, with
// an optional YAML file overlay for local and development operation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every externally-tunable setting the subsystem reads.
type Config struct {
	// CronSecret authorizes the witness/pulse cron endpoints. Required
	// in production; an unset value in development is allowed but logs
	// a warning on every cron invocation.
	CronSecret string `yaml:"cron_secret"`

	// WitnessHMACKey signs anchors and tombstone records. Required.
	WitnessHMACKey string `yaml:"witness_hmac_key"`

	// AuditRoot is the silo root: <AuditRoot>/<sanitized_tenant_id>/...
	AuditRoot string `yaml:"audit_root"`

	// KeysRoot is where per-tenant key files live.
	KeysRoot string `yaml:"keys_root"`

	// RemoteStoreCredentials is opaque and passed through to whichever
	// remote-store driver is configured; the reference bbolt-backed
	// implementation treats it as its data directory.
	RemoteStoreCredentials string `yaml:"remote_store_credentials"`

	// StrictFooter makes the chain store trust its cached footer as
	// the chain head instead of cross-checking via reverse scan.
	// Default off: the reverse scan stays authoritative.
	StrictFooter bool `yaml:"strict_footer"`
}

// Default returns the baseline configuration: <cwd>/data/{audit,keys}
// and everything else empty.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		AuditRoot: filepath.Join(cwd, "data", "audit"),
		KeysRoot:  filepath.Join(cwd, "data", "keys"),
	}
}

// Load builds a Config starting from Default(), overlaying an optional
// YAML file (if path is non-empty and exists) and finally the
// environment variables, which always win.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if b, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.CronSecret = v
	}
	if v := os.Getenv("WITNESS_HMAC_KEY"); v != "" {
		cfg.WitnessHMACKey = v
	}
	if v := os.Getenv("AUDIT_ROOT"); v != "" {
		cfg.AuditRoot = v
	}
	if v := os.Getenv("KEYS_ROOT"); v != "" {
		cfg.KeysRoot = v
	}
	if v := os.Getenv("REMOTE_STORE_CREDENTIALS"); v != "" {
		cfg.RemoteStoreCredentials = v
	}
	if v := os.Getenv("AUDIT_STRICT_FOOTER"); v == "1" || v == "true" {
		cfg.StrictFooter = true
	}

	return cfg, nil
}
