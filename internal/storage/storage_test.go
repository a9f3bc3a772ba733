package storage

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(seq int64, ts time.Time) *Record {
	return &Record{
		SequenceNo:   seq,
		ID:           "rec-" + strconv.FormatInt(seq, 10),
		PrevChecksum: "sha256:prev",
		Checksum:     "sha256:cur",
		TokenValue:   "token-a",
		EpochID:      1,
		Resource:     "patient-record",
		Method:       "read",
		ActorID:      "provider-1",
		ActorRole:    "provider",
		Timestamp:    ts,
	}
}

func TestEpochLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ActiveEpoch(ctx)
	require.ErrorIs(t, err, ErrNoEpoch)

	now := time.Now().UTC().Truncate(time.Second)
	id1, err := s.ActivateEpoch(ctx, &Epoch{
		Secret: []byte("first-secret-material-0123456789"),
		Memory: 8192, Iterations: 2, Parallelism: 1, KeyLength: 32,
		CreatedAt: now, ActivatedAt: now,
	})
	require.NoError(t, err)

	active, err := s.ActiveEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, id1, active.ID)
	assert.Nil(t, active.RetiredAt)

	id2, err := s.ActivateEpoch(ctx, &Epoch{
		Secret: []byte("second-secret-material-012345678"),
		Memory: 8192, Iterations: 2, Parallelism: 1, KeyLength: 32,
		CreatedAt: now.Add(time.Hour), ActivatedAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	// Exactly one active epoch; the first one is retired, not deleted.
	active, err = s.ActiveEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, id2, active.ID)

	old, err := s.EpochByID(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, old.RetiredAt)
	assert.Equal(t, []byte("first-secret-material-0123456789"), old.Secret)

	all, err := s.Epochs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.EpochByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNoEpoch)
}

func TestChainHeadAndInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.ChainHead(ctx)
	require.ErrorIs(t, err, ErrNoRecord)

	now := time.Now().UTC()
	require.NoError(t, s.InsertRecord(ctx, testRecord(1, now)))

	head, err := s.ChainHead(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), head.SequenceNo)
	assert.Equal(t, "sha256:cur", head.Checksum)

	// Duplicate sequence numbers are rejected, not clobbered.
	dup := testRecord(1, now)
	dup.ID = "rec-dup"
	assert.Error(t, s.InsertRecord(ctx, dup))
}

func TestQueryRecords_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for seq := int64(1); seq <= 5; seq++ {
		r := testRecord(seq, base.Add(time.Duration(seq)*time.Hour))
		if seq%2 == 0 {
			r.TokenValue = "token-b"
		}
		if seq == 5 {
			r.IsAuditOfAudit = true
		}
		require.NoError(t, s.InsertRecord(ctx, r))
	}

	got, err := s.QueryRecords(ctx, QueryFilter{TokenValue: "token-b", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.QueryRecords(ctx, QueryFilter{TokenValues: []string{"token-a"}, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2) // seq 1, 3; seq 5 is meta and excluded

	got, err = s.QueryRecords(ctx, QueryFilter{IncludeMeta: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	got, err = s.QueryRecords(ctx, QueryFilter{From: base.Add(3 * time.Hour), Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2) // seq 3, 4 (5 is meta)

	got, err = s.QueryRecords(ctx, QueryFilter{AfterSeq: 3, IncludeMeta: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetentionHelpers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for seq := int64(1); seq <= 4; seq++ {
		ts := base
		if seq > 2 {
			ts = base.AddDate(1, 0, 0)
		}
		require.NoError(t, s.InsertRecord(ctx, testRecord(seq, ts)))
	}

	old, err := s.RecordsOlderThan(ctx, base.AddDate(0, 6, 0), 0, 10)
	require.NoError(t, err)
	assert.Len(t, old, 2)

	n, err := s.PurgeSequences(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	remaining, err := s.RecordsInRange(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	require.NoError(t, s.SetCheckpoint(ctx, CheckpointRetention, 2))
	seq, err := s.Checkpoint(ctx, CheckpointRetention)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	seq, err = s.Checkpoint(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, seq)
}
