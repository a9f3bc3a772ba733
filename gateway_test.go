package phiaudit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAssignments is a fixed provider-to-patients mapping.
type stubAssignments map[string][]string

func (s stubAssignments) AssignedPatients(_ context.Context, providerID string) ([]string, error) {
	return s[providerID], nil
}

func countMetaRecords(t *testing.T, svc *Service) int {
	t.Helper()
	page, err := svc.Query(context.Background(),
		Filter{Resource: ResourceAuditQuery, IncludeMeta: true, Limit: 1000},
		Actor{ID: "admin-1", Role: RoleAdmin})
	require.NoError(t, err)
	return len(page.Records)
}

func TestQuery_PatientSeesOnlyOwnRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mine := appendTestRecord(t, svc, "patient-alpha", "patient-record")
	appendTestRecord(t, svc, "patient-beta", "patient-record")

	page, err := svc.Query(ctx, Filter{}, Actor{ID: "patient-alpha", Role: RolePatient})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, mine.TokenValue, page.Records[0].TokenValue)

	// Asking for someone else's token by value is a denial, not an empty
	// page.
	other, err := svc.Hash(ctx, "patient-beta")
	require.NoError(t, err)
	_, err = svc.Query(ctx, Filter{TokenValue: other.Value}, Actor{ID: "patient-alpha", Role: RolePatient})
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))
}

func TestQuery_PatientSeesRecordsAcrossRotations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	before := appendTestRecord(t, svc, "patient-alpha", "patient-record")
	_, err := svc.RotateSalt(ctx, RotateOptions{})
	require.NoError(t, err)
	after := appendTestRecord(t, svc, "patient-alpha", "patient-record")
	require.NotEqual(t, before.TokenValue, after.TokenValue)

	page, err := svc.Query(ctx, Filter{Resource: "patient-record"}, Actor{ID: "patient-alpha", Role: RolePatient})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)
}

func TestQuery_EveryEvaluationAppendsOneMetaRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	appendTestRecord(t, svc, "patient-alpha", "patient-record")

	base := countMetaRecords(t, svc)

	_, err := svc.Query(ctx, Filter{}, Actor{ID: "patient-alpha", Role: RolePatient})
	require.NoError(t, err)
	_, err = svc.Query(ctx, Filter{}, Actor{ID: "nobody", Role: Role("billing")})
	require.Error(t, err)

	// One granted and one denied evaluation, one meta record each. The
	// counting queries add one of their own.
	assert.Equal(t, base+3, countMetaRecords(t, svc))
}

func TestQuery_MetaRecordsExcludedByDefault(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	appendTestRecord(t, svc, "patient-alpha", "patient-record")

	// Warm the log with a few evaluations.
	for i := 0; i < 3; i++ {
		_, err := svc.Query(ctx, Filter{}, Actor{ID: "co-1", Role: RoleComplianceOfficer})
		require.NoError(t, err)
	}

	page, err := svc.Query(ctx, Filter{}, Actor{ID: "co-1", Role: RoleComplianceOfficer})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.False(t, page.Records[0].IsAuditOfAudit)
}

func TestQuery_DeniedRoleIsLogged(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Query(ctx, Filter{}, Actor{ID: "scheduler-1", Role: Role("scheduler")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessDenied)

	page, err := svc.Query(ctx,
		Filter{Resource: ResourceAuditQuery, IncludeMeta: true},
		Actor{ID: "co-1", Role: RoleComplianceOfficer})
	require.NoError(t, err)

	var denied *AuditRecord
	for _, r := range page.Records {
		if r.Method == "query-denied" {
			denied = r
		}
	}
	require.NotNil(t, denied, "denied evaluation must be logged")
	assert.Equal(t, "scheduler-1", denied.ActorID)
	assert.True(t, denied.IsAuditOfAudit)
}

func TestQuery_ProviderScopedToAssignedPatients(t *testing.T) {
	svc := newTestService(t, WithAssignmentResolver(stubAssignments{
		"provider-1": {"patient-alpha", "patient-beta"},
	}))
	ctx := context.Background()

	a := appendTestRecord(t, svc, "patient-alpha", "patient-record")
	b := appendTestRecord(t, svc, "patient-beta", "patient-record")
	appendTestRecord(t, svc, "patient-gamma", "patient-record")

	page, err := svc.Query(ctx, Filter{}, Actor{ID: "provider-1", Role: RoleProvider})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	tokens := []string{page.Records[0].TokenValue, page.Records[1].TokenValue}
	assert.ElementsMatch(t, []string{a.TokenValue, b.TokenValue}, tokens)

	// Unassigned providers get a denial.
	_, err = svc.Query(ctx, Filter{}, Actor{ID: "provider-2", Role: RoleProvider})
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))
}

func TestQuery_ProviderWithoutResolverDenied(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Query(context.Background(), Filter{}, Actor{ID: "provider-1", Role: RoleProvider})
	require.Error(t, err)
	assert.True(t, IsAccessDenied(err))
}

func TestQuery_ComplianceOfficerSeesEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	appendTestRecord(t, svc, "patient-alpha", "patient-record")
	appendTestRecord(t, svc, "patient-beta", "intake-form")

	page, err := svc.Query(ctx, Filter{}, Actor{ID: "co-1", Role: RoleComplianceOfficer})
	require.NoError(t, err)
	assert.Len(t, page.Records, 2)

	// With IncludeMeta the prior evaluation shows up too.
	page, err = svc.Query(ctx, Filter{IncludeMeta: true}, Actor{ID: "co-1", Role: RoleComplianceOfficer})
	require.NoError(t, err)
	assert.Len(t, page.Records, 4)
}

func TestQuery_Pagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendTestRecord(t, svc, "patient-alpha", "patient-record")
	}

	actor := Actor{ID: "co-1", Role: RoleComplianceOfficer}
	first, err := svc.Query(ctx, Filter{Resource: "patient-record", Limit: 2}, actor)
	require.NoError(t, err)
	require.Len(t, first.Records, 2)
	assert.True(t, first.HasMore)

	second, err := svc.Query(ctx, Filter{Resource: "patient-record", Limit: 2, AfterSeq: first.NextSeq}, actor)
	require.NoError(t, err)
	require.Len(t, second.Records, 2)
	assert.Greater(t, second.Records[0].SequenceNo, first.Records[1].SequenceNo)

	third, err := svc.Query(ctx, Filter{Resource: "patient-record", Limit: 2, AfterSeq: second.NextSeq}, actor)
	require.NoError(t, err)
	assert.Len(t, third.Records, 1)
	assert.False(t, third.HasMore)
}
