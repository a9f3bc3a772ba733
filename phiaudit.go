package phiaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/hengadev/phiaudit/internal/storage"
)

// Service assembles the audit subsystem: epoch manager, anonymizer, writer,
// retention manager, and access gateway, all sharing one store and one
// explicit configuration resolved at construction.
type Service struct {
	cfg        Config
	store      *storage.Store
	Epochs     *EpochManager
	Anonymizer *Anonymizer
	Writer     *Writer
	Retention  *RetentionManager
	Gateway    *AccessGateway
}

// New builds the subsystem. In a production environment a missing or
// malformed secret fails here, before any identifier can be hashed or any
// record written.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	var cfg Config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return assemble(ctx, cfg, store)
}

// NewWithConfig builds the subsystem from an already-loaded configuration,
// typically the result of LoadConfigFromEnvironment.
func NewWithConfig(ctx context.Context, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return assemble(ctx, cfg, store)
}

// newInMemory builds a subsystem on an in-memory store, for tests.
func newInMemory(ctx context.Context, cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.OpenInMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return assemble(ctx, cfg, store)
}

func assemble(ctx context.Context, cfg Config, store *storage.Store) (*Service, error) {
	epochs, err := NewEpochManager(ctx, store, &cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	writer, err := NewWriter(ctx, store, &cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	epochs.SetAuditor(writer)

	anonymizer := NewAnonymizer(epochs, &cfg)

	return &Service{
		cfg:        cfg,
		store:      store,
		Epochs:     epochs,
		Anonymizer: anonymizer,
		Writer:     writer,
		Retention:  NewRetentionManager(store, writer, &cfg),
		Gateway:    NewAccessGateway(store, writer, anonymizer, epochs, &cfg),
	}, nil
}

// Hash anonymizes a patient identifier under the active epoch.
func (s *Service) Hash(ctx context.Context, identifier string) (AnonymizedToken, error) {
	return s.Anonymizer.Hash(ctx, identifier)
}

// Append writes one audit record.
func (s *Service) Append(ctx context.Context, e Entry) (*AuditRecord, error) {
	return s.Writer.Append(ctx, e)
}

// Query serves a role-scoped read over the log.
func (s *Service) Query(ctx context.Context, f Filter, actor Actor) (*Page, error) {
	return s.Gateway.Query(ctx, f, actor)
}

// RotateSalt retires the active epoch and activates a fresh one. This is an
// administrative operation; cadence comes from the rotation policy, driven
// by the operator or a scheduler.
func (s *Service) RotateSalt(ctx context.Context, opts RotateOptions) (*SaltEpoch, error) {
	return s.Epochs.Rotate(ctx, opts)
}

// Sweep runs one retention pass relative to now.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	return s.Retention.Sweep(ctx, now)
}

// VerifyChain verifies the checksum chain across a sequence range.
func (s *Service) VerifyChain(ctx context.Context, fromSeq, toSeq int64) (ChainReport, error) {
	return s.Writer.VerifyChain(ctx, fromSeq, toSeq)
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
