package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoEpoch is returned when a lookup matches no epoch row.
var ErrNoEpoch = errors.New("no matching epoch")

// Epoch is a stored salt epoch row.
type Epoch struct {
	ID          int64
	Secret      []byte
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
	CreatedAt   time.Time
	ActivatedAt time.Time
	RetiredAt   *time.Time
}

const epochColumns = `id, secret, memory, iterations, parallelism, key_length, created_at, activated_at, retired_at`

// ActiveEpoch returns the single non-retired epoch, or ErrNoEpoch when the
// table is empty.
func (s *Store) ActiveEpoch(ctx context.Context) (*Epoch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+epochColumns+` FROM salt_epochs
		WHERE retired_at IS NULL
		ORDER BY id DESC LIMIT 1
	`)
	return scanEpoch(row)
}

// EpochByID returns a specific epoch, retired or not.
func (s *Store) EpochByID(ctx context.Context, id int64) (*Epoch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+epochColumns+` FROM salt_epochs WHERE id = ?
	`, id)
	return scanEpoch(row)
}

// Epochs returns every stored epoch, oldest first. Retired epochs are kept
// forever, so the result covers the full token history.
func (s *Store) Epochs(ctx context.Context) ([]*Epoch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+epochColumns+` FROM salt_epochs ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list epochs: %w", err)
	}
	defer rows.Close()

	var out []*Epoch
	for rows.Next() {
		e, err := scanEpoch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate epochs: %w", err)
	}
	return out, nil
}

// ActivateEpoch retires the current epoch (if any) and inserts the new one
// in a single transaction, preserving the one-active-epoch invariant.
func (s *Store) ActivateEpoch(ctx context.Context, e *Epoch) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin epoch transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE salt_epochs SET retired_at = ? WHERE retired_at IS NULL
	`, e.ActivatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to retire previous epoch: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO salt_epochs (secret, memory, iterations, parallelism, key_length, created_at, activated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Secret, e.Memory, e.Iterations, e.Parallelism, e.KeyLength, e.CreatedAt, e.ActivatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert epoch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read epoch id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit epoch transaction: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpoch(row rowScanner) (*Epoch, error) {
	var e Epoch
	var retiredAt sql.NullTime
	err := row.Scan(&e.ID, &e.Secret, &e.Memory, &e.Iterations, &e.Parallelism,
		&e.KeyLength, &e.CreatedAt, &e.ActivatedAt, &retiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEpoch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan epoch: %w", err)
	}
	if retiredAt.Valid {
		t := retiredAt.Time
		e.RetiredAt = &t
	}
	return &e, nil
}
