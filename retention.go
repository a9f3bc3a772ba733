package phiaudit

import (
	"context"
	"fmt"
	"time"

	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/storage"
)

// RetentionManager ages out audit records per the retention policy. It is
// the only component allowed to remove records, and only after the policy
// threshold; nothing it exposes can delete a record early.
//
// The sweep is a periodic background job, checkpointed by the last
// processed sequence number so an interrupted run resumes without
// double-archiving or skipping records.
type RetentionManager struct {
	store   *storage.Store
	writer  *Writer
	archive ArchiveStore
	policy  RetentionPolicy
	clock   func() time.Time
	logger  monitoring.Logger
	metrics monitoring.MetricsCollector
}

// NewRetentionManager wires the sweep against hot storage, the audit
// writer, and the archive destination.
func NewRetentionManager(store *storage.Store, writer *Writer, cfg *Config) *RetentionManager {
	return &RetentionManager{
		store:   store,
		writer:  writer,
		archive: cfg.Archive,
		policy:  cfg.Retention,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// SweepResult reports what one sweep pass did.
type SweepResult struct {
	Archived int64
	Purged   int64
}

// Sweep archives and, when enabled, purges records older than the policy
// threshold relative to now. Records younger than the threshold are never
// touched. Safe to re-run after a crash: archive keys are deterministic per
// sequence range, so a replayed batch overwrites its own object, and purge
// removes rows idempotently.
func (m *RetentionManager) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	cutoff := now.Add(-m.policy.Threshold)

	checkpoint, err := m.store.Checkpoint(ctx, storage.CheckpointRetention)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stored, err := m.store.RecordsOlderThan(ctx, cutoff, checkpoint, m.policy.BatchSize)
		if err != nil {
			return result, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if len(stored) == 0 {
			break
		}

		records := make([]*AuditRecord, len(stored))
		seqs := make([]int64, len(stored))
		for i, r := range stored {
			records[i] = recordFromStored(r)
			seqs[i] = r.SequenceNo
		}
		firstSeq, lastSeq := seqs[0], seqs[len(seqs)-1]

		if m.policy.ArchiveBeforePurge {
			payload, err := EncodeArchive(records)
			if err != nil {
				return result, err
			}
			key := archiveKey(firstSeq, lastSeq)
			if err := m.archive.Put(ctx, key, payload); err != nil {
				return result, fmt.Errorf("%w: archive of sequences %d-%d failed: %w", ErrStorageUnavailable, firstSeq, lastSeq, err)
			}
			result.Archived += int64(len(records))
			m.metrics.IncrementCounterBy("phiaudit.retention.archived", int64(len(records)), nil)
		}

		if m.policy.PurgeEnabled {
			// The purge itself is auditable; log it before the rows
			// leave hot storage.
			if _, err := m.writer.Append(ctx, Entry{
				Resource: ResourceRetentionPurge,
				Method:   fmt.Sprintf("purge:%d-%d", firstSeq, lastSeq),
				Actor:    SystemActor,
				Token:    AnonymizedToken{Value: SentinelTokenValue},
			}); err != nil {
				return result, err
			}
			purged, err := m.store.PurgeSequences(ctx, seqs)
			if err != nil {
				return result, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
			result.Purged += purged
			m.metrics.IncrementCounterBy("phiaudit.retention.purged", purged, nil)
		}

		checkpoint = lastSeq
		if err := m.store.SetCheckpoint(ctx, storage.CheckpointRetention, checkpoint); err != nil {
			return result, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}

		if len(stored) < m.policy.BatchSize {
			break
		}
	}

	if result.Archived > 0 || result.Purged > 0 {
		m.logger.Info("retention sweep completed",
			"archived", result.Archived,
			"purged", result.Purged,
			"cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return result, nil
}

// Run drives periodic sweeps until the context is cancelled, for callers
// that want the manager to own its own schedule.
func (m *RetentionManager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Sweep(ctx, m.clock()); err != nil {
				m.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}

func archiveKey(firstSeq, lastSeq int64) string {
	return fmt.Sprintf("audit-archive/%012d-%012d.jsonl.gz", firstSeq, lastSeq)
}
