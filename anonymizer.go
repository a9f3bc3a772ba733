package phiaudit

import (
	"context"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/hengadev/phiaudit/internal/monitoring"
)

// Anonymizer turns raw patient identifiers into opaque, irreversible audit
// tokens using Argon2id keyed with the active epoch's secret.
//
// The epoch secret acts as the salt, not a per-call random value: the same
// identifier always produces the same token within an epoch (referential
// integrity), while the secrecy of the salt is what defeats dictionary and
// rainbow-table attacks across predictable identifier populations. No
// reverse index exists anywhere; the mapping is strictly one-way.
type Anonymizer struct {
	epochs  *EpochManager
	slots   chan struct{}
	logger  monitoring.Logger
	metrics monitoring.MetricsCollector
	clock   func() time.Time
}

// NewAnonymizer creates an anonymizer with a bounded worker pool. Argon2id
// is deliberately expensive; the pool keeps a burst of audit writes from
// starving request-handling goroutines of CPU.
func NewAnonymizer(epochs *EpochManager, cfg *Config) *Anonymizer {
	return &Anonymizer{
		epochs:  epochs,
		slots:   make(chan struct{}, cfg.HashWorkers),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
	}
}

// Hash anonymizes an identifier under the active epoch. Empty, whitespace,
// or separator-only identifiers yield the sentinel token, never an error:
// a malformed identifier is a data problem to record, not a fault.
func (a *Anonymizer) Hash(ctx context.Context, identifier string) (AnonymizedToken, error) {
	epoch, err := a.epochs.ActiveEpoch(ctx)
	if err != nil {
		return AnonymizedToken{}, err
	}
	return a.HashWithEpoch(ctx, identifier, epoch)
}

// HashWithEpoch anonymizes an identifier under a specific epoch, which is
// how records written before a rotation are re-verified.
func (a *Anonymizer) HashWithEpoch(ctx context.Context, identifier string, epoch *SaltEpoch) (AnonymizedToken, error) {
	normalized := NormalizeIdentifier(identifier)
	if normalized == "" {
		return AnonymizedToken{Value: SentinelTokenValue, EpochID: epoch.ID}, nil
	}

	select {
	case a.slots <- struct{}{}:
		defer func() { <-a.slots }()
	case <-ctx.Done():
		return AnonymizedToken{}, ctx.Err()
	}

	start := a.clock()
	params := epoch.WorkFactor
	key := argon2.IDKey(
		[]byte(normalized),
		epoch.Secret(),
		params.Iterations,
		params.Memory,
		params.Parallelism,
		params.KeyLength,
	)
	a.metrics.RecordTiming("phiaudit.hash.duration", a.clock().Sub(start), nil)
	a.metrics.IncrementCounter("phiaudit.hash.total", nil)

	return AnonymizedToken{
		Value:   hex.EncodeToString(key),
		EpochID: epoch.ID,
	}, nil
}

// NormalizeIdentifier collapses the surface formats an identifier shows up
// in (MRN-12-345, "mrn 12345", mrn.12345) to a single canonical form, so
// format variants of the same identifier cannot be linked apart. Lowercased
// letters and digits survive; everything else is dropped.
func NormalizeIdentifier(identifier string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(identifier)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
