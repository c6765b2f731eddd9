package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

func boolPtr(v bool) *bool { return &v }

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var fe *core.FieldError
	require.True(t, errors.As(err, &fe), "expected field error, got %v", err)
	return fe.Field
}

func TestRoleService(t *testing.T) {
	ctx := context.Background()

	t.Run("admin only", func(t *testing.T) {
		f := newFixture(t)
		svc := NewRoleService(f.roles, f.members, f.gate)
		_, err := svc.List(ctx, managerID)
		assert.True(t, core.IsAuthorization(err))
		_, err = svc.Create(ctx, devID, RoleInput{Name: "Tester"})
		assert.True(t, core.IsAuthorization(err))
	})

	t.Run("create normalizes permissions", func(t *testing.T) {
		f := newFixture(t)
		svc := NewRoleService(f.roles, f.members, f.gate)
		view, err := svc.Create(ctx, adminID, RoleInput{
			Name:        "  Tester ",
			Permissions: []string{"view_issues", "add_issues", "view_issues"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Tester", view.Name)
		assert.Equal(t, []string{"add_issues", "view_issues"}, view.Permissions)
		assert.Equal(t, models.IssuesVisibilityDefault, view.IssuesVisibility)
		assert.True(t, view.Assignable)

		stored, err := f.roles.GetByID(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, models.BuiltinGivable, stored.Builtin)
	})

	t.Run("input validation", func(t *testing.T) {
		f := newFixture(t)
		svc := NewRoleService(f.roles, f.members, f.gate)

		_, err := svc.Create(ctx, adminID, RoleInput{Name: "X", Permissions: []string{"launch_rockets"}})
		assert.ErrorIs(t, err, core.ErrUnknownPermission)
		assert.Equal(t, "permissions", fieldOf(t, err))

		_, err = svc.Create(ctx, adminID, RoleInput{Name: "X", IssuesVisibility: "everyone"})
		assert.Equal(t, "issues_visibility", fieldOf(t, err))

		_, err = svc.Create(ctx, adminID, RoleInput{Name: "   "})
		assert.Equal(t, "name", fieldOf(t, err))
	})

	t.Run("builtin roles keep their name and cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		svc := NewRoleService(f.roles, f.members, f.gate)

		_, err := svc.Update(ctx, adminID, 1, RoleInput{Name: "Visitors"})
		assert.ErrorIs(t, err, core.ErrBuiltinRoleRename)

		view, err := svc.Update(ctx, adminID, 1, RoleInput{Name: "Non member", Permissions: []string{"view_issues"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"view_issues"}, view.Permissions)

		assert.ErrorIs(t, svc.Delete(ctx, adminID, 2), core.ErrBuiltinRoleDelete)
	})

	t.Run("roles in use cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		svc := NewRoleService(f.roles, f.members, f.gate)
		assert.ErrorIs(t, svc.Delete(ctx, adminID, f.devRole), core.ErrRoleInUse)

		view, err := svc.Create(ctx, adminID, RoleInput{Name: "Spare"})
		require.NoError(t, err)
		require.NoError(t, svc.Delete(ctx, adminID, view.ID))
		_, err = f.roles.GetByID(ctx, view.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("updates drop cached permissions", func(t *testing.T) {
		f := newFixture(t)
		f.withCache(t)
		svc := NewRoleService(f.roles, f.members, f.gate)

		ok, err := f.gate.HasPermission(ctx, devID, project, "edit_issues")
		require.NoError(t, err)
		require.True(t, ok)

		_, err = svc.Update(ctx, adminID, f.devRole, RoleInput{Name: "Developer", Permissions: []string{"view_issues"}, AllRolesManaged: boolPtr(true)})
		require.NoError(t, err)

		ok, err = f.gate.HasPermission(ctx, devID, project, "edit_issues")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemberService(t *testing.T) {
	ctx := context.Background()

	t.Run("manager grants managed roles", func(t *testing.T) {
		f := newFixture(t)
		f.withCache(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)

		ok, err := f.gate.HasPermission(ctx, outsiderID, project, "view_issues")
		require.NoError(t, err)
		require.False(t, ok)

		view, err := svc.SetRoles(ctx, managerID, project, outsiderID, MemberInput{RoleIDs: []int{f.reporterRole, f.reporterRole}})
		require.NoError(t, err)
		assert.Equal(t, []int{f.reporterRole}, view.RoleIDs)
		assert.Equal(t, outsiderID, view.UserID)

		ok, err = f.gate.HasPermission(ctx, outsiderID, project, "view_issues")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unmanaged roles are refused", func(t *testing.T) {
		f := newFixture(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)

		_, err := svc.SetRoles(ctx, managerID, project, outsiderID, MemberInput{RoleIDs: []int{f.devRole}})
		assert.True(t, core.IsAuthorization(err))

		err = svc.Remove(ctx, managerID, project, devID)
		assert.True(t, core.IsAuthorization(err))

		require.NoError(t, svc.Remove(ctx, managerID, project, reporterID))
		m, err := f.members.FindMember(ctx, reporterID, project)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("admin manages everything", func(t *testing.T) {
		f := newFixture(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)
		_, err := svc.SetRoles(ctx, adminID, project, outsiderID, MemberInput{RoleIDs: []int{f.devRole, f.managerRole}})
		require.NoError(t, err)
		require.NoError(t, svc.Remove(ctx, adminID, project, devID))

		err = svc.Remove(ctx, adminID, project, devID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("role validation", func(t *testing.T) {
		f := newFixture(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)

		for name, ids := range map[string][]int{
			"empty":   {},
			"builtin": {1},
			"unknown": {404},
		} {
			_, err := svc.SetRoles(ctx, adminID, project, outsiderID, MemberInput{RoleIDs: ids})
			assert.True(t, core.IsValidation(err), name)
			assert.Equal(t, "role_ids", fieldOf(t, err), name)
		}

		locked := &models.Role{Name: "Locked", Assignable: false}
		require.NoError(t, f.roles.Create(ctx, locked))
		_, err := svc.SetRoles(ctx, adminID, project, outsiderID, MemberInput{RoleIDs: []int{locked.ID}})
		assert.ErrorIs(t, err, core.ErrInvalidFieldValue)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)
		_, err := svc.SetRoles(ctx, adminID, project, 999, MemberInput{RoleIDs: []int{f.devRole}})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("requires manage_members", func(t *testing.T) {
		f := newFixture(t)
		svc := NewMemberService(f.users, f.members, f.roles, f.gate)
		_, err := svc.SetRoles(ctx, devID, project, outsiderID, MemberInput{RoleIDs: []int{f.reporterRole}})
		assert.True(t, core.IsAuthorization(err))
	})
}

func TestWorkflowService(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces transitions", func(t *testing.T) {
		f := newFixture(t)
		svc := NewWorkflowService(f.rules, f.gate)
		f.rules.Add(models.WorkflowRule{Type: models.WorkflowTransition, TrackerID: 1, OldStatusID: 1, NewStatusID: 5, RoleID: f.devRole})

		stored, err := svc.Replace(ctx, adminID, WorkflowInput{
			Type:      models.WorkflowTransition,
			TrackerID: 1,
			RoleID:    f.devRole,
			Rules:     []WorkflowRuleInput{{OldStatusID: 1, NewStatusID: 2, Assignee: true}},
		})
		require.NoError(t, err)
		require.Len(t, stored, 1)

		rows, err := f.rules.TransitionRules(ctx, 1, 1, []int{f.devRole})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 2, rows[0].NewStatusID)
		assert.True(t, rows[0].Assignee)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t)
		svc := NewWorkflowService(f.rules, f.gate)

		_, err := svc.Replace(ctx, devID, WorkflowInput{Type: models.WorkflowTransition})
		assert.True(t, core.IsAuthorization(err))

		_, err = svc.Replace(ctx, adminID, WorkflowInput{Type: "macro"})
		assert.Equal(t, "type", fieldOf(t, err))

		_, err = svc.Replace(ctx, adminID, WorkflowInput{Type: models.WorkflowTransition, Rules: []WorkflowRuleInput{{OldStatusID: 1}}})
		assert.Equal(t, "rules[0].new_status_id", fieldOf(t, err))

		_, err = svc.Replace(ctx, adminID, WorkflowInput{Type: models.WorkflowField, Rules: []WorkflowRuleInput{{FieldName: "mood", Rule: models.FieldRuleRequired}}})
		assert.ErrorIs(t, err, core.ErrUnknownField)

		_, err = svc.Replace(ctx, adminID, WorkflowInput{Type: models.WorkflowField, Rules: []WorkflowRuleInput{{FieldName: "subject", Rule: "optional"}}})
		assert.Equal(t, "rules[0].rule", fieldOf(t, err))
	})

	t.Run("import", func(t *testing.T) {
		f := newFixture(t)
		svc := NewWorkflowService(f.rules, f.gate)
		doc, err := workflow.ParseDocument([]byte(`
apiVersion: redtrack/v1
kind: Workflow
metadata:
  name: bugs
spec:
  rules:
    - tracker_id: 1
      role_id: 3
      transitions:
        - {from: 1, to: 2}
      fields:
        - {status_id: 2, field: due_date, rule: required}
`))
		require.NoError(t, err)

		_, err = svc.Import(ctx, managerID, doc)
		assert.True(t, core.IsAuthorization(err))

		summary, err := svc.Import(ctx, adminID, doc)
		require.NoError(t, err)
		assert.Equal(t, workflow.ImportSummary{RuleSets: 1, Transitions: 1, Fields: 1}, summary)
	})
}
