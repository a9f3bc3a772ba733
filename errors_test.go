package phiaudit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		config     bool
		retryable  bool
		integrity  bool
		accessDeny bool
	}{
		{"secret not configured", NewSecretNotConfiguredError("env:X"), true, false, false, false},
		{"weak secret", NewWeakSecretError("too short"), true, false, false, false},
		{"invalid configuration", fmt.Errorf("%w: bad", ErrInvalidConfiguration), true, false, false, false},
		{"storage unavailable", fmt.Errorf("%w: disk gone", ErrStorageUnavailable), false, true, false, false},
		{"integrity violation", NewIntegrityError(7), false, false, true, false},
		{"access denied", NewAccessDeniedError(Actor{Role: RolePatient}, "nope"), false, false, false, true},
		{"unrelated", errors.New("boom"), false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.config, IsConfigurationError(tt.err))
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
			assert.Equal(t, tt.integrity, IsIntegrityError(tt.err))
			assert.Equal(t, tt.accessDeny, IsAccessDenied(tt.err))
		})
	}
}

func TestIntegrityErrorNamesSequence(t *testing.T) {
	err := NewIntegrityError(42)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.Contains(t, err.Error(), "42")
}
