package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionStatusEdges(t *testing.T) {
	allowed := [][2]ActionStatus{
		{ActionStatusActionIssued, ActionStatusExplanationSubmitted},
		{ActionStatusActionIssued, ActionStatusUnderInvestigation},
		{ActionStatusExplanationSubmitted, ActionStatusUnderInvestigation},
		{ActionStatusExplanationSubmitted, ActionStatusAwaitingVerdict},
		{ActionStatusUnderInvestigation, ActionStatusInvestigationCompleted},
		{ActionStatusInvestigationCompleted, ActionStatusAwaitingVerdict},
		{ActionStatusAwaitingVerdict, ActionStatusCompleted},
		{ActionStatusAwaitingVerdict, ActionStatusDismissed},
	}
	for _, edge := range allowed {
		assert.True(t, edge[0].CanTransitionTo(edge[1]), "%s -> %s", edge[0], edge[1])
	}

	rejected := [][2]ActionStatus{
		{ActionStatusActionIssued, ActionStatusAwaitingVerdict},
		{ActionStatusUnderInvestigation, ActionStatusAwaitingVerdict},
		{ActionStatusAwaitingVerdict, ActionStatusUnderInvestigation},
		{ActionStatusCompleted, ActionStatusDismissed},
		{ActionStatusDismissed, ActionStatusCompleted},
	}
	for _, edge := range rejected {
		assert.False(t, edge[0].CanTransitionTo(edge[1]), "%s -> %s", edge[0], edge[1])
	}

	assert.True(t, ActionStatusCompleted.Terminal())
	assert.True(t, ActionStatusDismissed.Terminal())
	assert.False(t, ActionStatusAwaitingVerdict.Terminal())
}

func TestReportStatusEdges(t *testing.T) {
	assert.True(t, ReportStatusReported.CanTransitionTo(ReportStatusUnderReview))
	assert.True(t, ReportStatusUnderReview.CanTransitionTo(ReportStatusUnderReview))
	assert.True(t, ReportStatusUnderReview.CanTransitionTo(ReportStatusActionIssued))
	assert.True(t, ReportStatusReported.CanTransitionTo(ReportStatusDismissed))
	assert.False(t, ReportStatusActionIssued.CanTransitionTo(ReportStatusUnderReview))
	assert.False(t, ReportStatusDismissed.CanTransitionTo(ReportStatusReported))
	assert.True(t, ReportStatusDismissed.Terminal())
	assert.True(t, ReportStatusActionIssued.Terminal())
}

func TestVerdictOutcome(t *testing.T) {
	assert.Equal(t, ActionStatusCompleted, VerdictUphold.Outcome())
	assert.Equal(t, ActionStatusDismissed, VerdictDismiss.Outcome())
	assert.False(t, Verdict("appeal").Valid())
}

func TestActionTypeSet(t *testing.T) {
	set, err := NewActionTypeSet([]string{"Verbal_Warning", "written_warning", "verbal_warning"})
	require.NoError(t, err)
	assert.Equal(t, ActionTypeSet{ActionTypeVerbalWarning, ActionTypeWrittenWarning}, set)
	assert.True(t, set.Contains(ActionTypeWrittenWarning))
	assert.False(t, set.Contains(ActionTypeTermination))

	_, err = NewActionTypeSet([]string{"probation"})
	assert.Error(t, err)

	var scanned ActionTypeSet
	require.NoError(t, scanned.Scan([]byte("{suspension,counseling}")))
	assert.Equal(t, ActionTypeSet{ActionTypeSuspension, ActionTypeCounseling}, scanned)
	assert.Error(t, scanned.Scan([]byte("{bogus}")))
}

func TestWitnessesColumn(t *testing.T) {
	value, err := Witnesses(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	value, err = Witnesses{{Name: "Ana", Contact: "ext 12"}}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Ana","contact":"ext 12"}]`, value.(string))

	var w Witnesses
	require.NoError(t, w.Scan([]byte(`[{"name":"Budi"}]`)))
	assert.Equal(t, Witnesses{{Name: "Budi"}}, w)
	require.NoError(t, w.Scan(nil))
	assert.Empty(t, w)
}

func TestJSONPayload(t *testing.T) {
	value, err := JSONPayload(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	var p JSONPayload
	require.NoError(t, p.Scan([]byte(`{"a":1}`)))
	raw, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
	assert.Error(t, p.Scan(42))
}

func TestActionFieldPresence(t *testing.T) {
	empty := ""
	action := &DisciplinaryAction{InvestigatorID: &empty}
	assert.False(t, action.HasInvestigator())
	assert.False(t, action.HasExplanation())
	assert.False(t, action.HasInvestigation())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, ReportStatusDismissed.Valid())
	assert.True(t, ReportStatusUnderReview.Valid())
	assert.False(t, ReportStatus("closed").Valid())

	for _, s := range []ActionStatus{ActionStatusActionIssued, ActionStatusAwaitingVerdict, ActionStatusCompleted, ActionStatusDismissed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ActionStatus("pending").Valid())
}

func TestJWTClaimsActor(t *testing.T) {
	var none *JWTClaims
	assert.Equal(t, "", none.Actor())
	assert.False(t, none.HasRole(RoleHR))

	claims := &JWTClaims{Role: RoleHRManager}
	claims.Subject = "emp-3"
	assert.Equal(t, "emp-3", claims.Actor())
	claims.UserID = "emp-4"
	assert.Equal(t, "emp-4", claims.Actor())
	assert.True(t, claims.HasRole(RoleHR, RoleHRManager))
	assert.False(t, claims.HasRole(RoleEmployee))
}

func TestActionStatusSuccessors(t *testing.T) {
	assert.Equal(t, []ActionStatus{ActionStatusCompleted, ActionStatusDismissed}, ActionStatusAwaitingVerdict.Successors())
	assert.Empty(t, ActionStatusCompleted.Successors())

	succ := ActionStatusUnderInvestigation.Successors()
	succ[0] = ActionStatusDismissed
	assert.Equal(t, []ActionStatus{ActionStatusInvestigationCompleted}, ActionStatusUnderInvestigation.Successors())
}
