package phiaudit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testSecret is valid material: long enough, non-zero, no placeholder.
func testSecret() []byte {
	return []byte("unit-test-secret-material-0123456789abcdef")
}

// lightParams keeps Argon2 at the bottom of the validated window so tests
// stay fast while exercising the real algorithm.
func lightParams() Argon2Params {
	return Argon2Params{
		Memory:      8192,
		Iterations:  2,
		Parallelism: 1,
		KeyLength:   32,
	}
}

// newTestService builds a fully wired subsystem on an in-memory store.
func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return newTestServiceAt(t, time.Now, opts...)
}

// newTestServiceAt injects a clock alongside the defaults.
func newTestServiceAt(t *testing.T, clock func() time.Time, opts ...Option) *Service {
	t.Helper()

	cfg := Config{}
	base := []Option{
		WithEnvironment(EnvProduction),
		WithSecretSource(StaticSecretSource{Material: testSecret()}),
		WithArgon2Params(lightParams()),
		WithClock(clock),
	}
	for _, opt := range append(base, opts...) {
		require.NoError(t, opt(&cfg))
	}

	svc, err := newInMemory(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func appendTestRecord(t *testing.T, svc *Service, patientID, resource string) *AuditRecord {
	t.Helper()
	ctx := context.Background()
	token, err := svc.Hash(ctx, patientID)
	require.NoError(t, err)
	rec, err := svc.Append(ctx, Entry{
		Token:    token,
		Resource: resource,
		Method:   "read",
		Actor:    Actor{ID: "provider-1", Role: RoleProvider},
	})
	require.NoError(t, err)
	return rec
}
