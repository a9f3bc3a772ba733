package phiaudit

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hengadev/errsx"
	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/reliability"
)

// Config holds the complete configuration for the audit subsystem.
//
// This struct contains only data, no behavior. Configuration can be loaded
// from any source (environment variables, code, a policy file) and passed
// explicitly to New. There are no hidden globals: every component receives
// the resolved values at construction time.
type Config struct {
	// Environment is resolved once at startup. In EnvProduction a missing
	// or malformed secret is fatal before any hash is computed.
	Environment Environment

	// SecretSource supplies the active epoch's salt material. Required.
	SecretSource SecretSource

	// DBPath is the full path of the SQLite database file.
	// Default: .phiaudit/audit.db
	DBPath string

	// Argon2Params is the work factor for identifier hashing.
	Argon2Params Argon2Params

	// Retention governs the archival/purge sweep.
	Retention RetentionPolicy

	// Rotation carries the advisory rotation cadence. Rotation itself is
	// driven by the caller or a scheduler, never a built-in timer.
	Rotation RotationPolicy

	// HashWorkers bounds the CPU pool for Argon2 hashing so audit writes
	// cannot starve request handling. Default: DefaultHashWorkers.
	HashWorkers int

	// Archive receives expired records before purge. Required when
	// Retention.ArchiveBeforePurge is set.
	Archive ArchiveStore

	// Assignments resolves a provider's patient panel for gateway
	// scoping. Optional; without it provider queries are denied.
	Assignments AssignmentResolver

	// Retry configures the storage retry budget for audit appends.
	Retry reliability.RetryConfig

	Logger  monitoring.Logger
	Hook    monitoring.ObservabilityHook
	Metrics monitoring.MetricsCollector

	// Clock is the time source, injectable for tests.
	Clock func() time.Time
}

// Validate checks required fields and applies defaults to optional ones.
func (c *Config) Validate() error {
	errs := errsx.Map{}

	if c.SecretSource == nil {
		errs.Set("secretSource", fmt.Errorf("%w: a SecretSource is required", ErrInvalidConfiguration))
	}

	if c.Argon2Params == (Argon2Params{}) {
		c.Argon2Params = DefaultArgon2Params()
	}
	if err := c.Argon2Params.Validate(); err != nil {
		errs.Set("argon2Params", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err))
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(DefaultDBPath, DefaultDBFile)
	}
	if c.HashWorkers <= 0 {
		c.HashWorkers = DefaultHashWorkers
	}
	if c.Retention.Threshold <= 0 {
		c.Retention.Threshold = DefaultRetentionThreshold
	}
	if c.Retention.BatchSize <= 0 {
		c.Retention.BatchSize = 500
	}
	if c.Retention.ArchiveBeforePurge && c.Archive == nil {
		errs.Set("archive", fmt.Errorf("%w: ArchiveBeforePurge requires an ArchiveStore", ErrInvalidConfiguration))
	}
	if c.Rotation.Cadence <= 0 {
		c.Rotation.Cadence = DefaultRotationCadence
	}

	if c.Logger == nil {
		c.Logger = monitoring.NewStructuredLogger(monitoring.LoggerConfig{Component: "phiaudit"})
	}
	if c.Hook == nil {
		c.Hook = &monitoring.NoOpObservabilityHook{}
	}
	if c.Metrics == nil {
		c.Metrics = &monitoring.NoOpMetricsCollector{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	return errs.AsError()
}
