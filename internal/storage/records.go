package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoRecord is returned when a lookup matches no audit record.
var ErrNoRecord = errors.New("no matching audit record")

// Record is a stored audit record row.
type Record struct {
	SequenceNo       int64
	ID               string
	PrevChecksum     string
	Checksum         string
	TokenValue       string
	EpochID          int64
	Resource         string
	Method           string
	ActorID          string
	ActorRole        string
	Timestamp        time.Time
	SourceAddr       string
	UserAgent        string
	IsAuditOfAudit   bool
	CorrectsRecordID string
}

// Head describes the current tip of the chain.
type Head struct {
	SequenceNo int64
	Checksum   string
}

const recordColumns = `sequence_no, id, prev_checksum, checksum, token_value, epoch_id,
	resource, method, actor_id, actor_role, timestamp, source_addr, user_agent,
	is_audit_of_audit, corrects_record_id`

// ChainHead returns the highest sequence number and its checksum, or
// ErrNoRecord for an empty log.
func (s *Store) ChainHead(ctx context.Context) (Head, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sequence_no, checksum FROM audit_records
		ORDER BY sequence_no DESC LIMIT 1
	`)
	var h Head
	err := row.Scan(&h.SequenceNo, &h.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return Head{}, ErrNoRecord
	}
	if err != nil {
		return Head{}, fmt.Errorf("failed to read chain head: %w", err)
	}
	return h, nil
}

// InsertRecord appends one record. The primary key on sequence_no makes a
// concurrent double-allocation fail instead of silently clobbering.
func (s *Store) InsertRecord(ctx context.Context, r *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.SequenceNo, r.ID, r.PrevChecksum, r.Checksum, r.TokenValue, r.EpochID,
		r.Resource, r.Method, r.ActorID, r.ActorRole, r.Timestamp, r.SourceAddr,
		r.UserAgent, r.IsAuditOfAudit, r.CorrectsRecordID)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// RecordBySequence returns a single record.
func (s *Store) RecordBySequence(ctx context.Context, seq int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM audit_records WHERE sequence_no = ?
	`, seq)
	return scanRecord(row)
}

// RecordByID returns a single record by its public ID.
func (s *Store) RecordByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM audit_records WHERE id = ?
	`, id)
	return scanRecord(row)
}

// RecordsInRange returns records with fromSeq <= sequence_no <= toSeq in
// ascending order.
func (s *Store) RecordsInRange(ctx context.Context, fromSeq, toSeq int64) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM audit_records
		WHERE sequence_no >= ? AND sequence_no <= ?
		ORDER BY sequence_no ASC
	`, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to read record range: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// QueryFilter narrows a gateway query. Zero values mean "no constraint".
type QueryFilter struct {
	TokenValue  string
	ActorID     string
	Resource    string
	From        time.Time
	To          time.Time
	AfterSeq    int64
	Limit       int
	IncludeMeta bool
	TokenValues []string
}

// QueryRecords returns records matching the filter, ordered by sequence
// number, at most Limit rows.
func (s *Store) QueryRecords(ctx context.Context, f QueryFilter) ([]*Record, error) {
	var conds []string
	var args []any

	conds = append(conds, "sequence_no > ?")
	args = append(args, f.AfterSeq)

	if f.TokenValue != "" {
		conds = append(conds, "token_value = ?")
		args = append(args, f.TokenValue)
	}
	if len(f.TokenValues) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.TokenValues)), ",")
		conds = append(conds, "token_value IN ("+placeholders+")")
		for _, tv := range f.TokenValues {
			args = append(args, tv)
		}
	}
	if f.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Resource != "" {
		conds = append(conds, "resource = ?")
		args = append(args, f.Resource)
	}
	if !f.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, f.To)
	}
	if !f.IncludeMeta {
		conds = append(conds, "is_audit_of_audit = 0")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM audit_records
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY sequence_no ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// RecordsOlderThan returns up to limit records with timestamp before cutoff
// and sequence_no above afterSeq, for the retention sweep.
func (s *Store) RecordsOlderThan(ctx context.Context, cutoff time.Time, afterSeq int64, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM audit_records
		WHERE timestamp < ? AND sequence_no > ?
		ORDER BY sequence_no ASC
		LIMIT ?
	`, cutoff, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read expired records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// PurgeSequences removes the given sequence numbers from hot storage. Only
// the retention manager calls this, and only after archival and after the
// purge itself has been logged.
func (s *Store) PurgeSequences(ctx context.Context, seqs []int64) (int64, error) {
	if len(seqs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seqs)), ",")
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = seq
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_records WHERE sequence_no IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to purge records: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DB exposes the raw handle for migrations and for tests that simulate
// out-of-band tampering. Application code must not use it.
func (s *Store) DB() *sql.DB {
	return s.db
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	err := row.Scan(&r.SequenceNo, &r.ID, &r.PrevChecksum, &r.Checksum, &r.TokenValue,
		&r.EpochID, &r.Resource, &r.Method, &r.ActorID, &r.ActorRole, &r.Timestamp,
		&r.SourceAddr, &r.UserAgent, &r.IsAuditOfAudit, &r.CorrectsRecordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit record: %w", err)
	}
	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}
	return out, nil
}
