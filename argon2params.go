package phiaudit

import (
	"fmt"

	"github.com/hengadev/errsx"
)

// Argon2Params defines the work factor for Argon2id identifier hashing.
// The bounds in Validate balance brute-force resistance against request
// latency; an epoch carries the params it was created with so historical
// tokens recompute with the original cost.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultArgon2Params returns the recommended work factor for identifier
// anonymization.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024, // 64MB
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   32,
	}
}

// Validate checks that the parameters sit inside the safe window. Too low
// invites brute force over the identifier space; too high turns every audit
// write into a latency incident.
func (a Argon2Params) Validate() error {
	errs := errsx.Map{}

	if a.Memory < 8192 {
		errs.Set("memory", fmt.Errorf("memory must be at least 8192 KiB, got %d", a.Memory))
	}
	if a.Memory > 1024*1024 {
		errs.Set("memory", fmt.Errorf("memory must be at most 1048576 KiB, got %d", a.Memory))
	}
	if a.Iterations < 2 {
		errs.Set("iterations", fmt.Errorf("iterations must be at least 2, got %d", a.Iterations))
	}
	if a.Iterations > 16 {
		errs.Set("iterations", fmt.Errorf("iterations must be at most 16, got %d", a.Iterations))
	}
	if a.Parallelism < 1 {
		errs.Set("parallelism", fmt.Errorf("parallelism must be at least 1, got %d", a.Parallelism))
	}
	if a.KeyLength < 32 {
		errs.Set("keyLength", fmt.Errorf("key length must be at least 32 bytes, got %d", a.KeyLength))
	}

	return errs.AsError()
}
