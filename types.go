package phiaudit

import (
	"encoding/json"
	"strconv"
	"time"
)

// Environment identifies the deployment environment the subsystem runs in.
// It is resolved once at startup and passed explicitly; no code path is
// allowed to re-parse environment strings ad hoc.
type Environment int

const (
	EnvDevelopment Environment = iota
	EnvStaging
	EnvProduction
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	switch e {
	case EnvDevelopment:
		return "development"
	case EnvStaging:
		return "staging"
	case EnvProduction:
		return "production"
	default:
		return "unknown"
	}
}

// ParseEnvironment maps a configuration string to an Environment value.
// Unrecognized values resolve to EnvProduction so that a typo in deployment
// configuration fails closed rather than silently relaxing secret checks.
func ParseEnvironment(s string) Environment {
	switch s {
	case "development", "dev", "local":
		return EnvDevelopment
	case "staging", "stage":
		return EnvStaging
	default:
		return EnvProduction
	}
}

// Role is the actor role evaluated by the access gateway.
type Role string

const (
	RolePatient           Role = "patient"
	RoleProvider          Role = "provider"
	RoleComplianceOfficer Role = "compliance-officer"
	RoleAdmin             Role = "admin"
	RoleSystem            Role = "system"
)

// Actor is the authenticated identity on whose behalf an operation runs.
// Identity resolution happens in the surrounding application's auth layer;
// this subsystem only consumes the result.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is the actor recorded for operations the subsystem performs
// on its own behalf, such as salt rotation and retention purges.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

// SaltEpoch is one generation of salt material used to anonymize patient
// identifiers. Exactly one epoch is active at a time. Retired epochs are
// kept forever so that historical tokens remain verifiable.
type SaltEpoch struct {
	ID          int64
	secret      []byte
	WorkFactor  Argon2Params
	CreatedAt   time.Time
	ActivatedAt time.Time
	RetiredAt   *time.Time

	// Ephemeral marks a per-process secret synthesized in a non-production
	// environment. Ephemeral epochs are never written to the epoch store.
	Ephemeral bool
}

// NewSaltEpoch builds an epoch from stored fields. It is intended for the
// epoch store and for tests; application code obtains epochs from the
// EpochManager.
func NewSaltEpoch(id int64, secret []byte, params Argon2Params, createdAt, activatedAt time.Time, retiredAt *time.Time) *SaltEpoch {
	return &SaltEpoch{
		ID:          id,
		secret:      secret,
		WorkFactor:  params,
		CreatedAt:   createdAt,
		ActivatedAt: activatedAt,
		RetiredAt:   retiredAt,
	}
}

// Secret returns the raw salt material. Callers must not log or persist
// the returned slice outside the epoch store.
func (e *SaltEpoch) Secret() []byte {
	return e.secret
}

// Retired reports whether the epoch has been rotated out.
func (e *SaltEpoch) Retired() bool {
	return e.RetiredAt != nil
}

// String implements fmt.Stringer with the secret redacted.
func (e *SaltEpoch) String() string {
	return "SaltEpoch{id=" + strconv.FormatInt(e.ID, 10) + ", secret=[REDACTED]}"
}

// MarshalJSON redacts the secret so that diagnostic dumps of an epoch can
// never leak salt material.
func (e *SaltEpoch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64      `json:"id"`
		CreatedAt   time.Time  `json:"created_at"`
		ActivatedAt time.Time  `json:"activated_at"`
		RetiredAt   *time.Time `json:"retired_at,omitempty"`
		Ephemeral   bool       `json:"ephemeral,omitempty"`
	}{e.ID, e.CreatedAt, e.ActivatedAt, e.RetiredAt, e.Ephemeral})
}

// AnonymizedToken is the opaque, irreversible stand-in for a patient
// identifier. It is stateless: given the identifier and the epoch secret it
// is always recomputable, so it is never stored as a first-class row.
type AnonymizedToken struct {
	Value   string
	EpochID int64
}

// IsSentinel reports whether the token is the fixed stand-in produced for
// empty or malformed identifiers.
func (t AnonymizedToken) IsSentinel() bool {
	return t.Value == SentinelTokenValue
}

// AuditRecord is one immutable entry in the append-only audit log. The
// checksum covers the canonical serialization of every other field plus the
// previous record's checksum, forming a hash chain.
type AuditRecord struct {
	ID           string
	SequenceNo   int64
	PrevChecksum string
	Checksum     string
	TokenValue   string
	EpochID      int64
	Resource     string
	Method       string
	ActorID      string
	ActorRole    Role
	Timestamp    time.Time
	SourceAddr   string
	UserAgent    string

	// IsAuditOfAudit marks records describing reads of the audit log
	// itself, so reporting and gateway logic can exclude them from
	// triggering further meta-records.
	IsAuditOfAudit bool

	// CorrectsRecordID references the record this entry compensates for.
	// The log is append-only; corrections never edit in place.
	CorrectsRecordID string
}

// Entry carries the caller-supplied fields of an audit record. Sequence
// number, checksums, ID and timestamp are assigned by the writer.
type Entry struct {
	Token            AnonymizedToken
	Resource         string
	Method           string
	Actor            Actor
	SourceAddr       string
	UserAgent        string
	IsAuditOfAudit   bool
	CorrectsRecordID string
}
