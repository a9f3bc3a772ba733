package phiaudit

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/storage"
)

// EphemeralEpochID marks the per-process epoch synthesized when a
// non-production environment runs without a configured secret. It can never
// collide with a stored epoch: SQLite row IDs start at 1.
const EphemeralEpochID int64 = -1

// auditAppender is the slice of the Writer the epoch manager needs to log
// rotations. Narrowed to an interface so the manager can be constructed
// before the writer during assembly.
type auditAppender interface {
	Append(ctx context.Context, e Entry) (*AuditRecord, error)
}

// EpochManager owns the lifecycle of salt epochs: startup activation,
// rotation, and historical lookup. The secret source is consulted exactly
// once, at construction.
type EpochManager struct {
	store  *storage.Store
	env    Environment
	params Argon2Params
	clock  func() time.Time
	logger monitoring.Logger
	hook   monitoring.ObservabilityHook

	mu      sync.RWMutex
	active  *SaltEpoch
	auditor auditAppender
}

// NewEpochManager resolves the secret, validates it, and ensures an active
// epoch exists.
//
// In EnvProduction a missing or malformed secret returns a configuration
// error before any hash can be computed; the caller is expected to treat it
// as fatal and refuse patient-identifying traffic. In other environments a
// missing secret synthesizes an ephemeral per-process epoch, loudly logged
// and excluded from the persisted epoch history.
func NewEpochManager(ctx context.Context, store *storage.Store, cfg *Config) (*EpochManager, error) {
	m := &EpochManager{
		store:  store,
		env:    cfg.Environment,
		params: cfg.Argon2Params,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		hook:   cfg.Hook,
	}

	material, err := cfg.SecretSource.Secret(ctx)
	if err != nil {
		if cfg.Environment == EnvProduction {
			return nil, err
		}
		ephemeral, genErr := m.synthesizeEphemeral()
		if genErr != nil {
			return nil, genErr
		}
		m.active = ephemeral
		m.logger.Warn("no anonymization secret configured; using an EPHEMERAL per-process secret",
			"environment", cfg.Environment.String(),
			"source", cfg.SecretSource.Name(),
			"consequence", "tokens will not survive a process restart")
		return m, nil
	}

	// Weak material is as fatal as missing material, in every environment:
	// a placeholder secret must never masquerade as a real one.
	if err := ValidateSecret(material); err != nil {
		return nil, err
	}

	if err := m.activateConfigured(ctx, material); err != nil {
		return nil, err
	}
	return m, nil
}

// SetAuditor wires the audit writer in after assembly so rotations get
// logged. Rotation fails if no auditor is set; an unlogged rotation would
// itself be a compliance gap.
func (m *EpochManager) SetAuditor(a auditAppender) {
	m.mu.Lock()
	m.auditor = a
	m.mu.Unlock()
}

// ActiveEpoch returns the current epoch.
func (m *EpochManager) ActiveEpoch(ctx context.Context) (*SaltEpoch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, ErrNoActiveEpoch
	}
	return m.active, nil
}

// EpochByID returns an epoch by ID, including retired ones, so tokens
// minted under old epochs remain verifiable.
func (m *EpochManager) EpochByID(ctx context.Context, id int64) (*SaltEpoch, error) {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	if active != nil && active.ID == id {
		return active, nil
	}
	if id == EphemeralEpochID {
		return nil, fmt.Errorf("%w: ephemeral epoch %d belongs to another process", ErrEpochNotFound, id)
	}

	stored, err := m.store.EpochByID(ctx, id)
	if err != nil {
		if err == storage.ErrNoEpoch {
			return nil, fmt.Errorf("%w: id %d", ErrEpochNotFound, id)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return epochFromStored(stored), nil
}

// Epochs returns every known epoch, oldest first, including an ephemeral
// active epoch. The gateway uses this to recompute a subject's token under
// each historical epoch.
func (m *EpochManager) Epochs(ctx context.Context) ([]*SaltEpoch, error) {
	stored, err := m.store.Epochs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	out := make([]*SaltEpoch, 0, len(stored)+1)
	for _, e := range stored {
		out = append(out, epochFromStored(e))
	}

	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	if active != nil && active.Ephemeral {
		out = append(out, active)
	}
	return out, nil
}

// RotateOptions tunes a rotation. The zero value rotates with fresh random
// material and the manager's default work factor.
type RotateOptions struct {
	// WorkFactor overrides the Argon2 parameters for the new epoch.
	WorkFactor *Argon2Params
}

// Rotate retires the active epoch, activates a new one with independently
// generated secret material, and appends an audit record documenting the
// rotation. Callers drive cadence; the manager never rotates on a timer.
func (m *EpochManager) Rotate(ctx context.Context, opts RotateOptions) (*SaltEpoch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil && m.active.Ephemeral {
		return nil, fmt.Errorf("%w: cannot rotate an ephemeral epoch; configure a real secret first", ErrInvalidConfiguration)
	}
	if m.auditor == nil {
		return nil, fmt.Errorf("%w: rotation requires a wired audit writer", ErrInvalidConfiguration)
	}

	params := m.params
	if opts.WorkFactor != nil {
		if err := opts.WorkFactor.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		params = *opts.WorkFactor
	}

	material := make([]byte, MinSecretLength)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, fmt.Errorf("failed to generate rotation secret: %w", err)
	}

	now := m.clock().UTC()
	id, err := m.store.ActivateEpoch(ctx, &storage.Epoch{
		Secret:      material,
		Memory:      params.Memory,
		Iterations:  params.Iterations,
		Parallelism: params.Parallelism,
		KeyLength:   params.KeyLength,
		CreatedAt:   now,
		ActivatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	previousID := int64(0)
	if m.active != nil {
		previousID = m.active.ID
		retired := now
		m.active.RetiredAt = &retired
	}

	epoch := NewSaltEpoch(id, material, params, now, now, nil)
	m.active = epoch

	if _, err := m.auditor.Append(ctx, Entry{
		Resource: ResourceSaltRotation,
		Method:   "rotate",
		Actor:    SystemActor,
		Token:    AnonymizedToken{Value: SentinelTokenValue, EpochID: id},
	}); err != nil {
		// The new epoch is already active; surface the logging failure
		// loudly instead of pretending the rotation did not happen.
		return epoch, fmt.Errorf("epoch %d activated but rotation audit failed: %w", id, err)
	}

	m.hook.OnEpochOperation(ctx, "rotate", id, map[string]any{"previous_epoch_id": previousID})
	m.logger.Info("salt epoch rotated", "previous_epoch_id", previousID, "new_epoch_id", id)
	return epoch, nil
}

// activateConfigured makes the configured secret the active epoch. If the
// stored active epoch already carries this material the process joins it;
// otherwise the configured secret is treated as an externally coordinated
// rotation and activated as a new epoch.
func (m *EpochManager) activateConfigured(ctx context.Context, material []byte) error {
	stored, err := m.store.ActiveEpoch(ctx)
	switch {
	case err == nil:
		if bytesEqual(stored.Secret, material) {
			m.active = epochFromStored(stored)
			return nil
		}
		// Fall through: activate the configured material as a new epoch.
	case err == storage.ErrNoEpoch:
		// First startup; fall through.
	default:
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	now := m.clock().UTC()
	id, err := m.store.ActivateEpoch(ctx, &storage.Epoch{
		Secret:      material,
		Memory:      m.params.Memory,
		Iterations:  m.params.Iterations,
		Parallelism: m.params.Parallelism,
		KeyLength:   m.params.KeyLength,
		CreatedAt:   now,
		ActivatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	m.active = NewSaltEpoch(id, material, m.params, now, now, nil)
	m.hook.OnEpochOperation(ctx, "activate", id, nil)
	return nil
}

func (m *EpochManager) synthesizeEphemeral() (*SaltEpoch, error) {
	material := make([]byte, MinSecretLength)
	if _, err := io.ReadFull(rand.Reader, material); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral secret: %w", err)
	}
	now := m.clock().UTC()
	epoch := NewSaltEpoch(EphemeralEpochID, material, m.params, now, now, nil)
	epoch.Ephemeral = true
	return epoch, nil
}

func epochFromStored(e *storage.Epoch) *SaltEpoch {
	return NewSaltEpoch(e.ID, e.Secret, Argon2Params{
		Memory:      e.Memory,
		Iterations:  e.Iterations,
		Parallelism: e.Parallelism,
		KeyLength:   e.KeyLength,
	}, e.CreatedAt, e.ActivatedAt, e.RetiredAt)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
