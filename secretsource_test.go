package phiaudit

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name     string
		material []byte
		wantErr  bool
	}{
		{"valid material", testSecret(), false},
		{"exactly minimum length", make32("x"), false},
		{"one byte short", []byte("0123456789012345678901234567890"), true},
		{"empty", []byte{}, true},
		{"all zeros", make([]byte, 64), true},
		{"placeholder changeme", []byte("changeme"), true},
		{"placeholder with whitespace", []byte("  changeme  "), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.material)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrWeakSecret)
				// The material itself never appears in the error.
				if len(tt.material) > 0 {
					assert.NotContains(t, err.Error(), string(tt.material))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func make32(s string) []byte {
	out := make([]byte, MinSecretLength)
	for i := range out {
		out[i] = s[0]
	}
	return out
}

func TestEnvSecretSource_Unset(t *testing.T) {
	src := EnvSecretSource{Var: "PHIAUDIT_TEST_UNSET"}
	_, err := src.Secret(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotConfigured)
	assert.Contains(t, err.Error(), "PHIAUDIT_TEST_UNSET")
}

func TestEnvSecretSource_SetButEmpty(t *testing.T) {
	t.Setenv("PHIAUDIT_TEST_EMPTY", "   ")
	src := EnvSecretSource{Var: "PHIAUDIT_TEST_EMPTY"}
	_, err := src.Secret(context.Background())
	require.Error(t, err)
	// Set-but-empty is misconfiguration, distinct from missing.
	assert.NotErrorIs(t, err, ErrSecretNotConfigured)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestEnvSecretSource_Base64(t *testing.T) {
	material := testSecret()
	t.Setenv("PHIAUDIT_TEST_B64", base64.StdEncoding.EncodeToString(material))
	src := EnvSecretSource{Var: "PHIAUDIT_TEST_B64"}
	got, err := src.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, material, got)
}

func TestEnvSecretSource_RawFallback(t *testing.T) {
	// Not valid base64; taken verbatim.
	t.Setenv("PHIAUDIT_TEST_RAW", "not-base64!-material-0123456789abcdef")
	src := EnvSecretSource{Var: "PHIAUDIT_TEST_RAW"}
	got, err := src.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("not-base64!-material-0123456789abcdef"), got)
}

func TestStaticSecretSource(t *testing.T) {
	_, err := StaticSecretSource{}.Secret(context.Background())
	assert.ErrorIs(t, err, ErrSecretNotConfigured)

	material := testSecret()
	got, err := StaticSecretSource{Material: material}.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, material, got)

	// The returned slice is a copy; mutating it cannot corrupt the source.
	got[0] ^= 0xff
	again, err := StaticSecretSource{Material: material}.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testSecret(), again)
}
