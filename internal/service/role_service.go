package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// RoleInput is the body of role create and update requests.
type RoleInput struct {
	Name                  string   `json:"name" binding:"required"`
	Position              int      `json:"position"`
	Assignable            *bool    `json:"assignable"`
	Permissions           []string `json:"permissions"`
	IssuesVisibility      string   `json:"issues_visibility"`
	UsersVisibility       string   `json:"users_visibility"`
	TimeEntriesVisibility string   `json:"time_entries_visibility"`
	AllRolesManaged       *bool    `json:"all_roles_managed"`
	ManagedRoleIDs        []int    `json:"managed_role_ids"`
}

// RoleView is a role with its parsed permission keys.
type RoleView struct {
	models.Role
	Permissions []string `json:"permissions"`
}

// RoleService administers roles. Every mutation drops cached permission sets.
type RoleService struct {
	roles   repository.RoleRepository
	members repository.MemberRepository
	gate    *auth.Gate
}

func NewRoleService(roles repository.RoleRepository, members repository.MemberRepository, gate *auth.Gate) *RoleService {
	return &RoleService{roles: roles, members: members, gate: gate}
}

func (s *RoleService) List(ctx context.Context, actorID int) ([]RoleView, error) {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]RoleView, len(roles))
	for i := range roles {
		views[i] = newRoleView(&roles[i])
	}
	return views, nil
}

func (s *RoleService) Create(ctx context.Context, actorID int, in RoleInput) (*RoleView, error) {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	role := &models.Role{Builtin: models.BuiltinGivable, Assignable: true, AllRolesManaged: true}
	if err := applyRoleInput(role, in); err != nil {
		return nil, err
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, err
	}
	s.gate.Resolver().Invalidate(ctx)
	view := newRoleView(role)
	return &view, nil
}

// Update replaces the role's settings. Builtin roles keep their name.
func (s *RoleService) Update(ctx context.Context, actorID, roleID int, in RoleInput) (*RoleView, error) {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsBuiltin() && strings.TrimSpace(in.Name) != role.Name {
		return nil, fmt.Errorf("role %d: %w", role.ID, core.ErrBuiltinRoleRename)
	}
	if err := applyRoleInput(role, in); err != nil {
		return nil, err
	}
	if err := s.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	s.gate.Resolver().Invalidate(ctx)
	view := newRoleView(role)
	return &view, nil
}

func (s *RoleService) Delete(ctx context.Context, actorID, roleID int) error {
	if err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsBuiltin() {
		return fmt.Errorf("role %d: %w", role.ID, core.ErrBuiltinRoleDelete)
	}
	n, err := s.members.CountByRole(ctx, roleID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("role %d held by %d members: %w", roleID, n, core.ErrRoleInUse)
	}
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return err
	}
	s.gate.Resolver().Invalidate(ctx)
	return nil
}

func applyRoleInput(role *models.Role, in RoleInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.NewFieldError("name", core.ErrInvalidFieldValue)
	}
	perms := make([]auth.Permission, 0, len(in.Permissions))
	for _, key := range in.Permissions {
		p := auth.Permission(strings.TrimSpace(key))
		if !auth.IsKnown(p) {
			return core.NewFieldError("permissions", fmt.Errorf("%q: %w", key, core.ErrUnknownPermission))
		}
		perms = append(perms, p)
	}
	if err := checkVisibility("issues_visibility", in.IssuesVisibility,
		models.IssuesVisibilityAll, models.IssuesVisibilityDefault, models.IssuesVisibilityOwn); err != nil {
		return err
	}
	if err := checkVisibility("users_visibility", in.UsersVisibility,
		models.UsersVisibilityAll, models.UsersVisibilityMembersVisible); err != nil {
		return err
	}
	if err := checkVisibility("time_entries_visibility", in.TimeEntriesVisibility,
		models.TimeEntriesVisibilityAll, models.TimeEntriesVisibilityOwn); err != nil {
		return err
	}

	role.Name = name
	role.Position = in.Position
	role.PermissionsText = auth.FormatPermissions(perms)
	role.IssuesVisibility = in.IssuesVisibility
	role.UsersVisibility = in.UsersVisibility
	role.TimeEntriesVisibility = in.TimeEntriesVisibility
	if in.Assignable != nil {
		role.Assignable = *in.Assignable
	}
	if in.AllRolesManaged != nil {
		role.AllRolesManaged = *in.AllRolesManaged
	}
	role.ManagedRoleIDs = in.ManagedRoleIDs
	role.ApplyDefaults()
	return nil
}

func checkVisibility(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return core.NewFieldError(field, core.ErrInvalidFieldValue)
}

// newRoleView lists the catalog keys of role; unknown keys are left out of the
// view and reported by the resolver when the role is used.
func newRoleView(role *models.Role) RoleView {
	perms, _ := auth.RolePermissions(role)
	return RoleView{Role: *role, Permissions: auth.SortedKeys(perms)}
}
