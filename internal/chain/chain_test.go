package chain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFields() Fields {
	return Fields{
		ID:         "rec-1",
		SequenceNo: 1,
		TokenValue: "abc123",
		EpochID:    1,
		Resource:   "patient-record",
		Method:     "read",
		ActorID:    "provider-9",
		ActorRole:  "provider",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceAddr: "10.0.0.1",
		UserAgent:  "portal/1.0",
	}
}

func TestChecksum_Deterministic(t *testing.T) {
	f := sampleFields()
	first := Checksum(f, GenesisChecksum)
	second := Checksum(f, GenesisChecksum)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, Prefix))
}

func TestChecksum_DependsOnPrev(t *testing.T) {
	f := sampleFields()
	assert.NotEqual(t, Checksum(f, GenesisChecksum), Checksum(f, Prefix+"ff"))
}

func TestChecksum_EveryFieldCovered(t *testing.T) {
	base := sampleFields()
	baseSum := Checksum(base, GenesisChecksum)

	mutations := map[string]func(*Fields){
		"id":         func(f *Fields) { f.ID = "rec-2" },
		"sequence":   func(f *Fields) { f.SequenceNo = 2 },
		"token":      func(f *Fields) { f.TokenValue = "other" },
		"epoch":      func(f *Fields) { f.EpochID = 2 },
		"resource":   func(f *Fields) { f.Resource = "message" },
		"method":     func(f *Fields) { f.Method = "write" },
		"actorID":    func(f *Fields) { f.ActorID = "admin-1" },
		"actorRole":  func(f *Fields) { f.ActorRole = "admin" },
		"timestamp":  func(f *Fields) { f.Timestamp = f.Timestamp.Add(time.Second) },
		"sourceAddr": func(f *Fields) { f.SourceAddr = "10.0.0.2" },
		"userAgent":  func(f *Fields) { f.UserAgent = "portal/2.0" },
		"meta":       func(f *Fields) { f.IsAuditOfAudit = true },
		"corrects":   func(f *Fields) { f.CorrectsRecordID = "rec-0" },
	}
	for name, mutate := range mutations {
		f := sampleFields()
		mutate(&f)
		assert.NotEqual(t, baseSum, Checksum(f, GenesisChecksum), "mutating %s must change the checksum", name)
	}
}

func TestVerify(t *testing.T) {
	f := sampleFields()
	sum := Checksum(f, GenesisChecksum)
	require.True(t, Verify(f, GenesisChecksum, sum))

	f.Resource = "tampered"
	assert.False(t, Verify(f, GenesisChecksum, sum))
}

func TestCanonicalize_EscapesSeparators(t *testing.T) {
	a := sampleFields()
	a.SourceAddr = "10.0.0.1|portal/1.0"
	a.UserAgent = ""

	b := sampleFields()
	b.SourceAddr = "10.0.0.1"
	b.UserAgent = "portal/1.0"

	// Without escaping these two would canonicalize identically; a crafted
	// value must not be able to shift field boundaries.
	assert.NotEqual(t, Canonicalize(a), Canonicalize(b))
	assert.NotEqual(t, Checksum(a, GenesisChecksum), Checksum(b, GenesisChecksum))
}
