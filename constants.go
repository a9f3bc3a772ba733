package phiaudit

import "time"

// Environment variable names read by LoadConfigFromEnvironment.
const (
	EnvVarSecret      = "PHIAUDIT_SECRET"
	EnvVarEnvironment = "PHIAUDIT_ENV"
	EnvVarDBPath      = "PHIAUDIT_DB_PATH"
	EnvVarPolicyFile  = "PHIAUDIT_POLICY_FILE"
)

// Defaults applied by Config.Validate.
const (
	DefaultDBPath = ".phiaudit"
	DefaultDBFile = "audit.db"

	// MinSecretLength is the minimum accepted secret size in bytes.
	// 32 bytes gives 256 bits of entropy from a proper source.
	MinSecretLength = 32

	// DefaultRetentionThreshold is the HIPAA minimum retention window.
	DefaultRetentionThreshold = 6 * 365 * 24 * time.Hour

	// DefaultRotationCadence is a policy default only; rotation is driven
	// by the caller, not by a built-in timer.
	DefaultRotationCadence = 90 * 24 * time.Hour

	// DefaultHashWorkers bounds the CPU pool used for identifier hashing.
	DefaultHashWorkers = 4

	// SentinelTokenValue is the fixed token produced for empty or
	// malformed identifiers. Real tokens are hex digests and can never
	// collide with it.
	SentinelTokenValue = "sentinel:empty-identifier"

	// ResourceSaltRotation is the resource recorded for rotation events.
	ResourceSaltRotation = "salt-rotation"

	// ResourceRetentionPurge is the resource recorded before purged rows
	// leave hot storage.
	ResourceRetentionPurge = "retention-purge"

	// ResourceAuditQuery is the resource recorded for gateway evaluations.
	ResourceAuditQuery = "audit-query"
)

// knownBadSecrets lists placeholder values seen in example configs and
// leaked dotfiles. Any secret matching one of these is rejected outright.
var knownBadSecrets = []string{
	"changeme",
	"change-me",
	"secret",
	"password",
	"default",
	"test-secret",
	"00000000000000000000000000000000",
	"salt",
	"pepper",
	"hipaa-salt",
	"your-secret-here",
}
