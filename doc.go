// Package phiaudit provides the HIPAA audit and patient-identifier
// anonymization subsystem of a telehealth portal: a salted, epoch-versioned
// one-way mapping from patient identifiers to opaque audit tokens, an
// append-only tamper-evident audit log, a retention/archival sweep, and a
// role-gated query gateway.
//
// # Design
//
//   - Identifiers are hashed with Argon2id, keyed by the active salt
//     epoch's secret. The same identifier always yields the same token
//     within an epoch; no reverse index exists anywhere.
//   - Epochs are versioned and retired, never deleted, so tokens minted
//     before a rotation remain verifiable via EpochByID.
//   - Audit records form a hash chain: each checksum covers the canonical
//     serialization of the record plus the previous checksum. Tampering is
//     detectable (VerifyChain), not prevented; the log stays append-only.
//   - Retention archives records older than the policy threshold (default
//     six years) to cold storage before any purge, checkpointed so sweeps
//     are idempotent and crash-safe.
//   - The access gateway scopes reads by role and logs every evaluation,
//     granted or denied, as an audit-of-audit record.
//
// # Quick start
//
//	svc, err := phiaudit.New(ctx,
//	    phiaudit.WithEnvironment(phiaudit.EnvProduction),
//	    phiaudit.WithSecretSource(phiaudit.EnvSecretSource{}),
//	    phiaudit.WithDatabasePath("/var/lib/phiaudit/audit.db"),
//	)
//	if err != nil {
//	    log.Fatal(err) // missing secret in production stops here
//	}
//	defer svc.Close()
//
//	token, _ := svc.Hash(ctx, patientMRN)
//	svc.Append(ctx, phiaudit.Entry{
//	    Token:    token,
//	    Resource: "patient-record",
//	    Method:   "read",
//	    Actor:    actor,
//	})
//
// Secrets come from a SecretSource (environment, HashiCorp Vault via
// providers/vaultsecrets); archives go to an ArchiveStore (local directory,
// or S3 via providers/s3archive).
package phiaudit
