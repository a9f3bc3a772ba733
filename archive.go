package phiaudit

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArchiveStore is the cold-storage destination for expired audit records.
// Implementations must store the payload byte-for-byte: the archive format
// keeps every checksummed field, so a record retrieved from cold storage
// still verifies against the chain.
type ArchiveStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// archivedRecord is the JSONL row format of an archive batch.
type archivedRecord struct {
	ID               string    `json:"id"`
	SequenceNo       int64     `json:"sequence_no"`
	PrevChecksum     string    `json:"prev_checksum"`
	Checksum         string    `json:"checksum"`
	TokenValue       string    `json:"token_value"`
	EpochID          int64     `json:"epoch_id"`
	Resource         string    `json:"resource"`
	Method           string    `json:"method"`
	ActorID          string    `json:"actor_id"`
	ActorRole        string    `json:"actor_role"`
	Timestamp        time.Time `json:"timestamp"`
	SourceAddr       string    `json:"source_addr,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	IsAuditOfAudit   bool      `json:"is_audit_of_audit,omitempty"`
	CorrectsRecordID string    `json:"corrects_record_id,omitempty"`
}

// EncodeArchive serializes records as gzip-compressed JSONL. Compression
// does not touch field values, so checksums recompute identically after
// retrieval.
func EncodeArchive(records []*AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, r := range records {
		row := archivedRecord{
			ID:               r.ID,
			SequenceNo:       r.SequenceNo,
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
		if err := enc.Encode(row); err != nil {
			return nil, fmt.Errorf("failed to encode archive row %d: %w", r.SequenceNo, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeArchive parses a gzip JSONL batch back into records, so archived
// entries can be chain-verified after retrieval from cold storage.
func DecodeArchive(data []byte) ([]*AuditRecord, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer gz.Close()

	var out []*AuditRecord
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var row archivedRecord
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("failed to decode archive row: %w", err)
		}
		out = append(out, &AuditRecord{
			ID:               row.ID,
			SequenceNo:       row.SequenceNo,
			PrevChecksum:     row.PrevChecksum,
			Checksum:         row.Checksum,
			TokenValue:       row.TokenValue,
			EpochID:          row.EpochID,
			Resource:         row.Resource,
			Method:           row.Method,
			ActorID:          row.ActorID,
			ActorRole:        Role(row.ActorRole),
			Timestamp:        row.Timestamp,
			SourceAddr:       row.SourceAddr,
			UserAgent:        row.UserAgent,
			IsAuditOfAudit:   row.IsAuditOfAudit,
			CorrectsRecordID: row.CorrectsRecordID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return out, nil
}

// DirArchiveStore writes archive batches to a local directory. Suitable for
// development and tests; production deployments use providers/s3archive.
type DirArchiveStore struct {
	Dir string
}

// Put implements ArchiveStore.
func (s DirArchiveStore) Put(ctx context.Context, key string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write archive object %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize archive object %q: %w", key, err)
	}
	return nil
}

// Get implements ArchiveStore.
func (s DirArchiveStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive object %q: %w", key, err)
	}
	return data, nil
}
