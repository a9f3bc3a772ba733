package phiaudit

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// SecretSource supplies the salt material for the active epoch. It is
// queried once at startup. Implementations must distinguish "unset" from
// "empty string": an unset secret returns ErrSecretNotConfigured, never a
// zero-length slice.
//
// Distribution of the same secret to cooperating instances is the job of
// the backing channel (Vault, KMS, deployment tooling); this interface only
// defines the retrieval contract.
type SecretSource interface {
	// Secret returns the configured salt material, or an error wrapping
	// ErrSecretNotConfigured when nothing is set.
	Secret(ctx context.Context) ([]byte, error)

	// Name identifies the source in error messages and logs.
	Name() string
}

// EnvSecretSource reads a base64-encoded secret from an environment
// variable. Suitable for container deployments where the orchestrator
// injects the value from its own secret store.
type EnvSecretSource struct {
	// Var is the environment variable name. Defaults to PHIAUDIT_SECRET.
	Var string
}

// Name implements SecretSource.
func (s EnvSecretSource) Name() string {
	if s.Var == "" {
		return "env:" + EnvVarSecret
	}
	return "env:" + s.Var
}

// Secret implements SecretSource.
func (s EnvSecretSource) Secret(ctx context.Context) ([]byte, error) {
	key := s.Var
	if key == "" {
		key = EnvVarSecret
	}
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, NewSecretNotConfiguredError(s.Name())
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		// Set-but-empty is a configuration mistake, not "missing".
		return nil, fmt.Errorf("%w: %s is set but empty", ErrInvalidConfiguration, key)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Accept raw strings for operator convenience; entropy checks
		// still apply downstream.
		return []byte(raw), nil
	}
	return decoded, nil
}

// StaticSecretSource wraps a fixed secret. Intended for tests and for
// callers that already resolved the material through their own channel.
type StaticSecretSource struct {
	Material []byte
}

// Name implements SecretSource.
func (s StaticSecretSource) Name() string { return "static" }

// Secret implements SecretSource.
func (s StaticSecretSource) Secret(ctx context.Context) ([]byte, error) {
	if s.Material == nil {
		return nil, NewSecretNotConfiguredError(s.Name())
	}
	out := make([]byte, len(s.Material))
	copy(out, s.Material)
	return out, nil
}

// ValidateSecret rejects material that is too short, all zeros, or matches
// a known placeholder value. The error never includes the material itself.
func ValidateSecret(material []byte) error {
	if len(material) < MinSecretLength {
		return NewWeakSecretError(fmt.Sprintf("material shorter than %d bytes", MinSecretLength))
	}
	if isZeroSecret(material) {
		return NewWeakSecretError("material is all zeros")
	}
	lowered := strings.ToLower(strings.TrimSpace(string(material)))
	for _, bad := range knownBadSecrets {
		if lowered == bad {
			return NewWeakSecretError("material matches a known placeholder value")
		}
	}
	return nil
}

func isZeroSecret(material []byte) bool {
	return len(material) > 0 && bytes.Count(material, []byte{0}) == len(material)
}
