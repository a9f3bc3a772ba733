// Package chain computes the tamper-evidence checksums of the audit log.
//
// Each record's checksum is SHA-256 over a canonical pipe-separated
// serialization of its fields plus the previous record's checksum. Editing
// any stored field breaks the chain from that record forward, which is what
// makes retroactive tampering detectable without blocking writes.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Prefix tags checksum strings with the digest algorithm so a future
// algorithm migration can coexist with historical records.
const Prefix = "sha256:"

// GenesisChecksum seeds the chain before the first record.
const GenesisChecksum = Prefix + "0000000000000000000000000000000000000000000000000000000000000000"

// Fields is the checksummed portion of an audit record. The canonical
// serialization covers every field here in declaration order; adding a
// field is a chain-format change and must be append-only at the end.
type Fields struct {
	ID               string
	SequenceNo       int64
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

// Canonicalize renders the fields into the deterministic form covered by
// the checksum. Free-text fields are escaped so a crafted user agent cannot
// forge field boundaries.
func Canonicalize(f Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%s|%d|%s|%s|%s|%s|%s|%s|%s|%t|%s",
		f.ID,
		f.SequenceNo,
		f.TokenValue,
		f.EpochID,
		escape(f.Resource),
		escape(f.Method),
		escape(f.ActorID),
		escape(f.ActorRole),
		f.Timestamp.UTC().Format(time.RFC3339Nano),
		escape(f.SourceAddr),
		escape(f.UserAgent),
		f.IsAuditOfAudit,
		f.CorrectsRecordID,
	)
	return b.String()
}

// Checksum computes the chained checksum for a record given the previous
// record's checksum.
func Checksum(f Fields, prevChecksum string) string {
	h := sha256.New()
	h.Write([]byte(prevChecksum))
	h.Write([]byte{'\n'})
	h.Write([]byte(Canonicalize(f)))
	return Prefix + hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether a stored checksum matches the recomputed value.
func Verify(f Fields, prevChecksum, stored string) bool {
	return Checksum(f, prevChecksum) == stored
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "|", `\|`)
}
