package phiaudit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgon2Params_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Argon2Params)
		wantErr bool
	}{
		{"defaults are valid", func(p *Argon2Params) {}, false},
		{"floor of the window", func(p *Argon2Params) {
			p.Memory = 8192
			p.Iterations = 2
			p.Parallelism = 1
			p.KeyLength = 32
		}, false},
		{"memory too low", func(p *Argon2Params) { p.Memory = 4096 }, true},
		{"memory too high", func(p *Argon2Params) { p.Memory = 2 * 1024 * 1024 }, true},
		{"iterations too low", func(p *Argon2Params) { p.Iterations = 1 }, true},
		{"iterations too high", func(p *Argon2Params) { p.Iterations = 32 }, true},
		{"zero parallelism", func(p *Argon2Params) { p.Parallelism = 0 }, true},
		{"key too short", func(p *Argon2Params) { p.KeyLength = 16 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultArgon2Params()
			tt.mutate(&params)
			err := params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
