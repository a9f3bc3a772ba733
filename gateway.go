package phiaudit

import (
	"context"
	"time"

	"github.com/hengadev/phiaudit/internal/monitoring"
	"github.com/hengadev/phiaudit/internal/storage"
)

// AssignmentResolver resolves the patient panel of a provider, so the
// gateway can scope a provider's queries to their own patients. Supplied by
// the surrounding application.
type AssignmentResolver interface {
	AssignedPatients(ctx context.Context, providerID string) ([]string, error)
}

// Filter narrows an audit query. Zero values mean "no constraint".
type Filter struct {
	TokenValue string
	ActorID    string
	Resource   string
	From       time.Time
	To         time.Time

	// AfterSeq and Limit drive cursor pagination.
	AfterSeq int64
	Limit    int

	// IncludeMeta asks for audit-of-audit records. Honored only for
	// compliance-officer and admin actors.
	IncludeMeta bool
}

// Page is one page of query results.
type Page struct {
	Records []*AuditRecord
	NextSeq int64
	HasMore bool
}

// AccessGateway serves role-scoped reads over the audit log. Every
// evaluation, granted or denied, appends exactly one meta-record through
// the writer. Meta-records carry IsAuditOfAudit and are themselves excluded
// from triggering further gateway audit entries, which is what keeps the
// self-logging recursion bounded.
type AccessGateway struct {
	store       *storage.Store
	writer      *Writer
	anonymizer  *Anonymizer
	epochs      *EpochManager
	assignments AssignmentResolver
	logger      monitoring.Logger
	metrics     monitoring.MetricsCollector
}

// NewAccessGateway wires the gateway against the log, the writer, and the
// anonymizer.
func NewAccessGateway(store *storage.Store, writer *Writer, anonymizer *Anonymizer, epochs *EpochManager, cfg *Config) *AccessGateway {
	return &AccessGateway{
		store:       store,
		writer:      writer,
		anonymizer:  anonymizer,
		epochs:      epochs,
		assignments: cfg.Assignments,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Query evaluates the actor's access, appends the meta-record describing
// the evaluation, and returns the visible page. A denial is the typed
// ErrAccessDenied, still fully logged: denied access is expected traffic,
// not an exception.
func (g *AccessGateway) Query(ctx context.Context, f Filter, actor Actor) (*Page, error) {
	sf, denyReason, err := g.scopeFilter(ctx, f, actor)
	if err != nil {
		return nil, err
	}

	if denyReason != "" {
		if logErr := g.logEvaluation(ctx, actor, "query-denied"); logErr != nil {
			return nil, logErr
		}
		g.metrics.IncrementCounter("phiaudit.query.denied", map[string]string{"role": string(actor.Role)})
		return nil, NewAccessDeniedError(actor, denyReason)
	}

	// Log the grant before serving it; a read that cannot be logged must
	// not be served.
	if err := g.logEvaluation(ctx, actor, "query"); err != nil {
		return nil, err
	}

	stored, err := g.store.QueryRecords(ctx, sf)
	if err != nil {
		return nil, err
	}

	page := &Page{Records: make([]*AuditRecord, 0, len(stored))}
	for _, r := range stored {
		page.Records = append(page.Records, recordFromStored(r))
	}
	if n := len(page.Records); n > 0 {
		page.NextSeq = page.Records[n-1].SequenceNo
		page.HasMore = n == sf.Limit
	}
	g.metrics.IncrementCounter("phiaudit.query.granted", map[string]string{"role": string(actor.Role)})
	return page, nil
}

// scopeFilter translates the caller's filter into the storage filter the
// actor's role permits. It returns a non-empty denyReason when the role has
// no visibility into the requested records.
func (g *AccessGateway) scopeFilter(ctx context.Context, f Filter, actor Actor) (storage.QueryFilter, string, error) {
	sf := storage.QueryFilter{
		Resource: f.Resource,
		From:     f.From,
		To:       f.To,
		AfterSeq: f.AfterSeq,
		Limit:    f.Limit,
	}
	if sf.Limit <= 0 {
		sf.Limit = 100
	}

	switch actor.Role {
	case RoleComplianceOfficer, RoleAdmin:
		sf.TokenValue = f.TokenValue
		sf.ActorID = f.ActorID
		sf.IncludeMeta = f.IncludeMeta
		return sf, "", nil

	case RolePatient:
		tokens, err := g.subjectTokens(ctx, actor.ID)
		if err != nil {
			return sf, "", err
		}
		if len(tokens) == 0 {
			return sf, "patient identity resolves to no token", nil
		}
		if f.TokenValue != "" && !containsToken(tokens, f.TokenValue) {
			return sf, "patients may only query their own records", nil
		}
		sf.TokenValues = tokens
		return sf, "", nil

	case RoleProvider:
		if g.assignments == nil {
			return sf, "no patient assignments available for provider", nil
		}
		patients, err := g.assignments.AssignedPatients(ctx, actor.ID)
		if err != nil {
			return sf, "", err
		}
		if len(patients) == 0 {
			return sf, "provider has no assigned patients", nil
		}
		var tokens []string
		for _, patientID := range patients {
			ts, err := g.subjectTokens(ctx, patientID)
			if err != nil {
				return sf, "", err
			}
			tokens = append(tokens, ts...)
		}
		if len(tokens) == 0 {
			return sf, "assigned patients resolve to no tokens", nil
		}
		if f.TokenValue != "" && !containsToken(tokens, f.TokenValue) {
			return sf, "providers may only query records for assigned patients", nil
		}
		sf.TokenValues = tokens
		return sf, "", nil

	default:
		return sf, "role has no audit access", nil
	}
}

// subjectTokens computes the identifier's token under every known epoch, so
// records written before a rotation stay visible to their subject.
func (g *AccessGateway) subjectTokens(ctx context.Context, identifier string) ([]string, error) {
	epochs, err := g.epochs.Epochs(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(epochs))
	for _, epoch := range epochs {
		token, err := g.anonymizer.HashWithEpoch(ctx, identifier, epoch)
		if err != nil {
			return nil, err
		}
		if !token.IsSentinel() {
			tokens = append(tokens, token.Value)
		}
	}
	return tokens, nil
}

func (g *AccessGateway) logEvaluation(ctx context.Context, actor Actor, method string) error {
	_, err := g.writer.Append(ctx, Entry{
		Resource:       ResourceAuditQuery,
		Method:         method,
		Actor:          actor,
		IsAuditOfAudit: true,
		Token:          AnonymizedToken{Value: SentinelTokenValue},
	})
	return err
}

func containsToken(tokens []string, value string) bool {
	for _, t := range tokens {
		if t == value {
			return true
		}
	}
	return false
}
