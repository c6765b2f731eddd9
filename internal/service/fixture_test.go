package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/cache"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/relations"
	"github.com/redtrack-io/redtrack/internal/repository"
	"github.com/redtrack-io/redtrack/internal/repository/memory"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

const (
	project      = 1
	otherProject = 2

	adminID    = 1
	managerID  = 2
	devID      = 3
	reporterID = 4
	outsiderID = 5
)

type fixture struct {
	users    *memory.UserRepository
	roles    *memory.RoleRepository
	members  *memory.MemberRepository
	rules    *memory.WorkflowRuleRepository
	issues   *memory.IssueRepository
	statuses *memory.IssueStatusRepository
	resolver *auth.Resolver
	gate     *auth.Gate

	managerRole  int
	devRole      int
	reporterRole int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		users:   memory.NewUserRepository(),
		roles:   memory.NewRoleRepository(),
		members: memory.NewMemberRepository(),
		rules:   memory.NewWorkflowRuleRepository(),
		issues:  memory.NewIssueRepository(),
		statuses: memory.NewIssueStatusRepository(
			models.IssueStatus{ID: 1, Name: "New", Position: 1},
			models.IssueStatus{ID: 2, Name: "In Progress", Position: 2},
			models.IssueStatus{ID: 5, Name: "Closed", Position: 3, IsClosed: true},
		),
	}

	for _, u := range []models.User{
		{ID: adminID, Login: "admin", Admin: true},
		{ID: managerID, Login: "manager"},
		{ID: devID, Login: "dev"},
		{ID: reporterID, Login: "reporter"},
		{ID: outsiderID, Login: "outsider"},
	} {
		u := u
		u.Status = models.UserStatusActive
		require.NoError(t, u.SetPassword("secret-"+u.Login))
		require.NoError(t, f.users.Create(ctx, &u))
	}

	f.devRole = f.role(t, "Developer", `["view_issues","edit_issues","manage_issue_relations"]`, nil)
	f.reporterRole = f.role(t, "Reporter", `["view_issues","edit_own_issues"]`, nil)
	f.managerRole = f.role(t, "Manager", `["view_issues","manage_members"]`, []int{f.reporterRole})

	f.member(t, managerID, project, f.managerRole)
	f.member(t, devID, project, f.devRole)
	f.member(t, devID, otherProject, f.devRole)
	f.member(t, reporterID, project, f.reporterRole)

	f.resolver = auth.NewResolver(f.members, f.roles)
	f.gate = auth.NewGate(f.users, f.resolver)
	return f
}

// role creates an assignable role. A nil managed list means all roles are managed.
func (f *fixture) role(t *testing.T, name, perms string, managed []int) int {
	t.Helper()
	role := &models.Role{
		Name:            name,
		PermissionsText: perms,
		Assignable:      true,
		AllRolesManaged: managed == nil,
		ManagedRoleIDs:  managed,
	}
	role.ApplyDefaults()
	require.NoError(t, f.roles.Create(context.Background(), role))
	return role.ID
}

func (f *fixture) member(t *testing.T, userID, projectID int, roleIDs ...int) {
	t.Helper()
	_, err := f.members.SetRoles(context.Background(), userID, projectID, roleIDs)
	require.NoError(t, err)
}

func (f *fixture) issue(id, projectID, authorID int) {
	f.issues.AddIssue(&models.Issue{ID: id, TrackerID: 1, ProjectID: projectID, StatusID: 1, AuthorID: authorID, Subject: "Login fails", PriorityID: 2})
}

// withCache attaches an in-process permission cache to the resolver.
func (f *fixture) withCache(t *testing.T) {
	t.Helper()
	lc := cache.NewLocalCache(cache.LocalCacheConfig{DefaultTTL: time.Hour})
	t.Cleanup(lc.Stop)
	f.resolver.WithCache(lc)
}

func (f *fixture) engine() *workflow.Engine {
	return workflow.NewEngine(f.rules, f.statuses, f.issues)
}

func (f *fixture) graph(issues repository.IssueRepository) *relations.Graph {
	return relations.NewGraph(issues, relations.WithCrossProjectRelations(true))
}
