package phiaudit

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors. These are fatal at startup in production.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrSecretNotConfigured  = errors.New("anonymization secret not configured")
	ErrWeakSecret           = errors.New("anonymization secret rejected")

	// Epoch errors.
	ErrEpochNotFound = errors.New("salt epoch not found")
	ErrNoActiveEpoch = errors.New("no active salt epoch")

	// Writer and store errors.
	ErrStorageUnavailable = errors.New("audit storage unavailable")
	ErrRecordNotFound     = errors.New("audit record not found")

	// Integrity errors. Reported to operators, never auto-corrected.
	ErrIntegrityViolation = errors.New("audit chain integrity violation")

	// Gateway result. Expected control flow, always logged, never a panic.
	ErrAccessDenied = errors.New("access denied")

	// Retention errors.
	ErrRetentionViolation = errors.New("retention policy forbids removal")
)

// NewSecretNotConfiguredError reports a missing secret for a given source.
func NewSecretNotConfiguredError(source string) error {
	return fmt.Errorf("%w: source %q returned no secret; refusing to serve patient-identifying traffic", ErrSecretNotConfigured, source)
}

// NewWeakSecretError reports secret material that failed validation. The
// reason must describe the check, never the material itself.
func NewWeakSecretError(reason string) error {
	return fmt.Errorf("%w: %s", ErrWeakSecret, reason)
}

// NewIntegrityError reports the first divergent sequence found by a chain
// verification scan.
func NewIntegrityError(seq int64) error {
	return fmt.Errorf("%w: chain diverges at sequence %d", ErrIntegrityViolation, seq)
}

// NewAccessDeniedError describes a denied gateway evaluation.
func NewAccessDeniedError(actor Actor, reason string) error {
	return fmt.Errorf("%w: role %q: %s", ErrAccessDenied, actor.Role, reason)
}

// IsConfigurationError returns true if the error represents a configuration
// problem that must halt startup in production.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrSecretNotConfigured) ||
		errors.Is(err, ErrWeakSecret)
}

// IsRetryableError returns true if the error represents a transient failure
// that might succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsIntegrityError returns true if the error represents a tamper-evidence
// finding.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrIntegrityViolation)
}

// IsAccessDenied returns true if the error is the gateway's typed denial
// result.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
