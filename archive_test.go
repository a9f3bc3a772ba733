package phiaudit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	records := []*AuditRecord{
		{
			ID: "rec-1", SequenceNo: 1,
			PrevChecksum: "sha256:genesis", Checksum: "sha256:aaa",
			TokenValue: "token-a", EpochID: 1,
			Resource: "patient-record", Method: "read",
			ActorID: "provider-1", ActorRole: RoleProvider,
			Timestamp: now, SourceAddr: "10.0.0.1", UserAgent: "portal/1.0",
		},
		{
			ID: "rec-2", SequenceNo: 2,
			PrevChecksum: "sha256:aaa", Checksum: "sha256:bbb",
			TokenValue: "token-b", EpochID: 1,
			Resource: "audit-query", Method: "query",
			ActorID: "co-1", ActorRole: RoleComplianceOfficer,
			Timestamp: now.Add(time.Minute), IsAuditOfAudit: true,
		},
	}

	payload, err := EncodeArchive(records)
	require.NoError(t, err)

	decoded, err := DecodeArchive(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range records {
		assert.Equal(t, records[i], decoded[i], "record %d", i)
	}
}

func TestDecodeArchive_RejectsGarbage(t *testing.T) {
	_, err := DecodeArchive([]byte("not gzip"))
	assert.Error(t, err)
}

func TestDirArchiveStore(t *testing.T) {
	store := DirArchiveStore{Dir: t.TempDir()}
	ctx := context.Background()

	key := archiveKey(1, 42)
	payload := []byte("archive-bytes")
	require.NoError(t, store.Put(ctx, key, payload))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Overwriting the same key is how a replayed sweep behaves.
	require.NoError(t, store.Put(ctx, key, []byte("second")))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)

	_, err = store.Get(ctx, archiveKey(100, 200))
	assert.Error(t, err)
}

func TestArchiveKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, "audit-archive/000000000001-000000000042.jsonl.gz", archiveKey(1, 42))
	assert.Equal(t, archiveKey(7, 9), archiveKey(7, 9))
}
