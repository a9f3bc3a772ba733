package phiaudit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hengadev/phiaudit/internal/chain"
	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/reliability"
	"github.com/hengadev/phiaudit/internal/storage"
)

// Writer appends immutable, chained audit records. It is the only path
// that creates records; nothing in the public surface updates or deletes
// them. Sequence allocation is serialized behind a mutex so concurrent
// appends can never interleave and corrupt the chain.
type Writer struct {
	store   *storage.Store
	retry   reliability.RetryConfig
	clock   func() time.Time
	logger  monitoring.Logger
	hook    monitoring.ObservabilityHook
	metrics monitoring.MetricsCollector

	mu           sync.Mutex
	headSeq      int64
	headChecksum string
}

// NewWriter loads the chain head and returns a writer ready to append.
func NewWriter(ctx context.Context, store *storage.Store, cfg *Config) (*Writer, error) {
	w := &Writer{
		store:   store,
		retry:   cfg.Retry,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		hook:    cfg.Hook,
		metrics: cfg.Metrics,
	}

	head, err := store.ChainHead(ctx)
	switch {
	case err == nil:
		w.headSeq = head.SequenceNo
		w.headChecksum = head.Checksum
	case errors.Is(err, storage.ErrNoRecord):
		w.headSeq = 0
		w.headChecksum = chain.GenesisChecksum
	default:
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return w, nil
}

// Append assigns the next sequence number, chains the checksum to the
// previous record, and persists the result. Storage failures are retried
// with bounded backoff; exhaustion surfaces as ErrStorageUnavailable so the
// originating user action fails rather than proceeding unaudited.
func (w *Writer) Append(ctx context.Context, e Entry) (*AuditRecord, error) {
	start := w.clock()

	w.mu.Lock()
	defer w.mu.Unlock()

	rec := &AuditRecord{
		ID:               uuid.NewString(),
		SequenceNo:       w.headSeq + 1,
		PrevChecksum:     w.headChecksum,
		TokenValue:       e.Token.Value,
		EpochID:          e.Token.EpochID,
		Resource:         e.Resource,
		Method:           e.Method,
		ActorID:          e.Actor.ID,
		ActorRole:        e.Actor.Role,
		Timestamp:        w.clock().UTC(),
		SourceAddr:       e.SourceAddr,
		UserAgent:        e.UserAgent,
		IsAuditOfAudit:   e.IsAuditOfAudit,
		CorrectsRecordID: e.CorrectsRecordID,
	}
	rec.Checksum = chain.Checksum(chainFields(rec), rec.PrevChecksum)

	err := reliability.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.store.InsertRecord(ctx, recordToStored(rec))
	})
	if err != nil {
		w.hook.OnError(ctx, "Append", err, map[string]any{"sequence_no": rec.SequenceNo})
		w.metrics.IncrementCounter("phiaudit.append.failed", nil)
		// A dropped audit record is a compliance fault, not a no-op.
		return nil, fmt.Errorf("%w: append of sequence %d failed after retries: %w", ErrStorageUnavailable, rec.SequenceNo, err)
	}

	w.headSeq = rec.SequenceNo
	w.headChecksum = rec.Checksum

	w.metrics.IncrementCounter("phiaudit.append.total", nil)
	w.metrics.RecordTiming("phiaudit.append.duration", w.clock().Sub(start), nil)
	return rec, nil
}

// AppendCorrection appends a compensating record referencing an existing
// one by ID. The original is never edited in place.
func (w *Writer) AppendCorrection(ctx context.Context, originalID string, e Entry) (*AuditRecord, error) {
	if _, err := w.store.RecordByID(ctx, originalID); err != nil {
		if errors.Is(err, storage.ErrNoRecord) {
			return nil, fmt.Errorf("%w: cannot correct unknown record %q", ErrRecordNotFound, originalID)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	e.CorrectsRecordID = originalID
	return w.Append(ctx, e)
}

// ChainReport is the result of a verification scan.
type ChainReport struct {
	OK                bool
	FirstDivergentSeq int64
	Checked           int64
}

// verifyBatchSize bounds how many records one scan iteration loads, so a
// long verification honors context cancellation promptly.
const verifyBatchSize = 512

// VerifyChain recomputes checksums across [fromSeq, toSeq] and reports the
// first sequence where the stored chain diverges. Detection only: the scan
// is pure read and never repairs anything.
//
// The first record's stored PrevChecksum is the trust anchor; records
// before it may have been purged by retention.
func (w *Writer) VerifyChain(ctx context.Context, fromSeq, toSeq int64) (ChainReport, error) {
	if fromSeq <= 0 {
		fromSeq = 1
	}
	report := ChainReport{OK: true}

	prev := ""
	cursor := fromSeq
	for cursor <= toSeq {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batchEnd := cursor + verifyBatchSize - 1
		if batchEnd > toSeq {
			batchEnd = toSeq
		}
		records, err := w.store.RecordsInRange(ctx, cursor, batchEnd)
		if err != nil {
			return report, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}

		for _, stored := range records {
			rec := recordFromStored(stored)
			if prev == "" {
				prev = rec.PrevChecksum
			}
			if rec.PrevChecksum != prev || !chain.Verify(chainFields(rec), rec.PrevChecksum, rec.Checksum) {
				report.OK = false
				report.FirstDivergentSeq = rec.SequenceNo
				report.Checked++
				w.metrics.IncrementCounter("phiaudit.verify.divergent", nil)
				return report, NewIntegrityError(rec.SequenceNo)
			}
			prev = rec.Checksum
			report.Checked++
		}
		cursor = batchEnd + 1
	}

	w.metrics.IncrementCounter("phiaudit.verify.ok", nil)
	return report, nil
}

// Head returns the current tip of the chain.
func (w *Writer) Head() (seq int64, checksum string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.headSeq, w.headChecksum
}

func chainFields(r *AuditRecord) chain.Fields {
	return chain.Fields{
		ID:               r.ID,
		SequenceNo:       r.SequenceNo,
		TokenValue:       r.TokenValue,
		EpochID:          r.EpochID,
		Resource:         r.Resource,
		Method:           r.Method,
		ActorID:          r.ActorID,
		ActorRole:        string(r.ActorRole),
		Timestamp:        r.Timestamp,
		SourceAddr:       r.SourceAddr,
		UserAgent:        r.UserAgent,
		IsAuditOfAudit:   r.IsAuditOfAudit,
		CorrectsRecordID: r.CorrectsRecordID,
	}
}

func recordToStored(r *AuditRecord) *storage.Record {
	return &storage.Record{
		SequenceNo:       r.SequenceNo,
		ID:               r.ID,
		PrevChecksum:     r.PrevChecksum,
		Checksum:         r.Checksum,
		TokenValue:       r.TokenValue,
		EpochID:          r.EpochID,
		Resource:         r.Resource,
		Method:           r.Method,
		ActorID:          r.ActorID,
		ActorRole:        string(r.ActorRole),
		Timestamp:        r.Timestamp,
		SourceAddr:       r.SourceAddr,
		UserAgent:        r.UserAgent,
		IsAuditOfAudit:   r.IsAuditOfAudit,
		CorrectsRecordID: r.CorrectsRecordID,
	}
}

func recordFromStored(r *storage.Record) *AuditRecord {
	return &AuditRecord{
		ID:               r.ID,
		SequenceNo:       r.SequenceNo,
		PrevChecksum:     r.PrevChecksum,
		Checksum:         r.Checksum,
		TokenValue:       r.TokenValue,
		EpochID:          r.EpochID,
		Resource:         r.Resource,
		Method:           r.Method,
		ActorID:          r.ActorID,
		ActorRole:        Role(r.ActorRole),
		Timestamp:        r.Timestamp,
		SourceAddr:       r.SourceAddr,
		UserAgent:        r.UserAgent,
		IsAuditOfAudit:   r.IsAuditOfAudit,
		CorrectsRecordID: r.CorrectsRecordID,
	}
}
