package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
)

func newIssueService(t *testing.T) (*IssueService, *fixture) {
	t.Helper()
	f := newFixture(t)
	f.rules.Add(
		models.WorkflowRule{Type: models.WorkflowTransition, TrackerID: 1, OldStatusID: 1, NewStatusID: 2, RoleID: f.devRole},
		models.WorkflowRule{Type: models.WorkflowTransition, TrackerID: 1, OldStatusID: 1, NewStatusID: 2, RoleID: f.reporterRole},
		models.WorkflowRule{Type: models.WorkflowTransition, TrackerID: 1, OldStatusID: 1, NewStatusID: 5, RoleID: f.managerRole},
		models.WorkflowRule{Type: models.WorkflowField, TrackerID: 1, OldStatusID: 1, RoleID: f.devRole, FieldName: "subject", Rule: models.FieldRuleReadonly},
	)
	f.issue(100, project, reporterID)
	f.issue(101, project, devID)
	return NewIssueService(f.issues, f.roles, f.gate, f.engine()), f
}

func TestIssueService_Transitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newIssueService(t)

	got, err := svc.Transitions(ctx, devID, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].StatusID)

	t.Run("admin is evaluated with every role", func(t *testing.T) {
		got, err := svc.Transitions(ctx, adminID, 100)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("non member", func(t *testing.T) {
		_, err := svc.Transitions(ctx, outsiderID, 100)
		assert.True(t, core.IsAuthorization(err))
	})

	t.Run("missing issue", func(t *testing.T) {
		_, err := svc.Transitions(ctx, devID, 999)
		assert.True(t, core.IsNotFound(err))
	})
}

func TestIssueService_FieldRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newIssueService(t)

	rules, err := svc.FieldRules(ctx, devID, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, models.FieldRuleReadonly, rules["subject"])

	rules, err = svc.FieldRules(ctx, devID, 100, 2)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestIssueService_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("edit_issues holder moves any issue", func(t *testing.T) {
		svc, _ := newIssueService(t)
		res, err := svc.Transition(ctx, devID, 100, TransitionInput{StatusID: 2, Notes: "picking up"})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Issue.StatusID)
		assert.Equal(t, 1, res.Issue.LockVersion)
		assert.Equal(t, "picking up", res.Journal.Notes)
	})

	t.Run("edit_own_issues covers authored issues only", func(t *testing.T) {
		svc, _ := newIssueService(t)
		_, err := svc.Transition(ctx, reporterID, 100, TransitionInput{StatusID: 2})
		require.NoError(t, err)

		_, err = svc.Transition(ctx, reporterID, 101, TransitionInput{StatusID: 2})
		assert.True(t, core.IsAuthorization(err))
	})

	t.Run("field rules follow the target status", func(t *testing.T) {
		svc, _ := newIssueService(t)
		_, err := svc.Transition(ctx, devID, 100, TransitionInput{StatusID: 2, Fields: map[string]string{"subject": "renamed"}})
		require.NoError(t, err)
	})

	t.Run("target outside the workflow", func(t *testing.T) {
		svc, _ := newIssueService(t)
		_, err := svc.Transition(ctx, devID, 100, TransitionInput{StatusID: 5})
		assert.ErrorIs(t, err, core.ErrInvalidTransition)
	})

	t.Run("stale lock version", func(t *testing.T) {
		svc, _ := newIssueService(t)
		_, err := svc.Transition(ctx, devID, 100, TransitionInput{StatusID: 2, LockVersion: 7})
		assert.True(t, core.IsConflict(err))
	})

	t.Run("manager without edit permission", func(t *testing.T) {
		svc, _ := newIssueService(t)
		_, err := svc.Transition(ctx, managerID, 100, TransitionInput{StatusID: 5})
		assert.True(t, core.IsAuthorization(err))
	})
}
