package service

import (
	"context"
	"fmt"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

// TransitionInput is the body of a transition request.
type TransitionInput struct {
	StatusID    int               `json:"status_id" binding:"required"`
	LockVersion int               `json:"lock_version"`
	Fields      map[string]string `json:"fields"`
	Notes       string            `json:"notes"`
}

// IssueService gates workflow operations on an issue by project permissions.
// Transitions are not retried on conflict; the caller resubmits with a fresh
// lock_version.
type IssueService struct {
	issues repository.IssueRepository
	roles  repository.RoleRepository
	gate   *auth.Gate
	engine *workflow.Engine
}

func NewIssueService(issues repository.IssueRepository, roles repository.RoleRepository, gate *auth.Gate, engine *workflow.Engine) *IssueService {
	return &IssueService{issues: issues, roles: roles, gate: gate, engine: engine}
}

func (s *IssueService) Transitions(ctx context.Context, actorID, issueID int) ([]workflow.Transition, error) {
	issue, roleIDs, err := s.load(ctx, actorID, issueID, auth.PermissionViewIssues)
	if err != nil {
		return nil, err
	}
	transitions, err := s.engine.AvailableTransitions(ctx, issue, actorID, roleIDs)
	if err != nil {
		return nil, err
	}
	if transitions == nil {
		transitions = []workflow.Transition{}
	}
	return transitions, nil
}

// FieldRules returns the rules of statusID, or of the issue's current status when statusID is 0.
func (s *IssueService) FieldRules(ctx context.Context, actorID, issueID, statusID int) (map[string]models.FieldRule, error) {
	issue, roleIDs, err := s.load(ctx, actorID, issueID, auth.PermissionViewIssues)
	if err != nil {
		return nil, err
	}
	if statusID == 0 {
		statusID = issue.StatusID
	}
	return s.engine.FieldRules(ctx, issue.TrackerID, statusID, roleIDs)
}

func (s *IssueService) Transition(ctx context.Context, actorID, issueID int, in TransitionInput) (*workflow.TransitionResult, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	perms := []auth.Permission{auth.PermissionEditIssues}
	if issue.IsAuthoredBy(actorID) {
		perms = append(perms, auth.PermissionEditOwnIssues)
	}
	ok, err := s.gate.HasAnyPermission(ctx, actorID, issue.ProjectID, perms...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &core.AuthorizationError{UserID: actorID, ProjectID: issue.ProjectID, Permission: string(auth.PermissionEditIssues)}
	}

	roleIDs, err := s.actorRoleIDs(ctx, actorID, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyTransition(ctx, workflow.TransitionRequest{
		IssueID:      issueID,
		StatusID:     in.StatusID,
		LockVersion:  in.LockVersion,
		ActorID:      actorID,
		ActorRoleIDs: roleIDs,
		Fields:       in.Fields,
		Notes:        in.Notes,
	})
}

func (s *IssueService) load(ctx context.Context, actorID, issueID int, perm auth.Permission) (*models.Issue, []int, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.RequirePermission(ctx, actorID, issue.ProjectID, perm); err != nil {
		return nil, nil, err
	}
	roleIDs, err := s.actorRoleIDs(ctx, actorID, issue.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return issue, roleIDs, nil
}

// actorRoleIDs returns the roles used to evaluate workflow rules. Administrators
// are evaluated with every role.
func (s *IssueService) actorRoleIDs(ctx context.Context, actorID, projectID int) ([]int, error) {
	admin, err := s.gate.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var roles []models.Role
	if admin {
		roles, err = s.roles.List(ctx)
	} else {
		roles, err = s.gate.Resolver().RolesForProject(ctx, actorID, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("roles of user %d: %w", actorID, err)
	}
	ids := make([]int, len(roles))
	for i := range roles {
		ids[i] = roles[i].ID
	}
	return ids, nil
}
