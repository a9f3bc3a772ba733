package phiaudit

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadConfigFromEnvironment loads configuration from environment variables,
// following the 12-factor approach: deployment tooling injects the values,
// the process reads them exactly once at startup.
//
// Variables:
//   - PHIAUDIT_ENV: deployment environment (production assumed when unset)
//   - PHIAUDIT_SECRET: base64 or raw salt material; resolved lazily through
//     an EnvSecretSource so that "unset" and "empty" stay distinguishable
//   - PHIAUDIT_DB_PATH: SQLite database file (default .phiaudit/audit.db)
//   - PHIAUDIT_POLICY_FILE: optional YAML retention/rotation policy
func LoadConfigFromEnvironment() (Config, error) {
	cfg := Config{
		Environment:  ParseEnvironment(os.Getenv(EnvVarEnvironment)),
		SecretSource: EnvSecretSource{},
	}

	if dbPath := os.Getenv(EnvVarDBPath); dbPath != "" {
		cfg.DBPath = dbPath
	} else {
		cfg.DBPath = filepath.Join(DefaultDBPath, DefaultDBFile)
	}

	if policyPath := os.Getenv(EnvVarPolicyFile); policyPath != "" {
		retention, rotation, err := LoadPolicyFile(policyPath)
		if err != nil {
			return Config{}, err
		}
		cfg.Retention = retention
		cfg.Rotation = rotation
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
