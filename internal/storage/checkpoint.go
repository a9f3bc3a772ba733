package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CheckpointRetention names the retention sweep's checkpoint row.
const CheckpointRetention = "retention-sweep"

// Checkpoint returns the stored sequence number for a named checkpoint, or
// zero when none has been written yet.
func (s *Store) Checkpoint(ctx context.Context, name string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sequence_no FROM retention_checkpoint WHERE name = ?
	`, name)
	var seq int64
	err := row.Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read checkpoint %q: %w", name, err)
	}
	return seq, nil
}

// SetCheckpoint records the last processed sequence number for a named
// checkpoint. Re-running a sweep after a crash resumes from here.
func (s *Store) SetCheckpoint(ctx context.Context, name string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retention_checkpoint (name, sequence_no) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET sequence_no = excluded.sequence_no
	`, name, seq)
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %q: %w", name, err)
	}
	return nil
}
