package service

import (
	"context"
	"fmt"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// MemberInput is the body of a membership update.
type MemberInput struct {
	RoleIDs []int `json:"role_ids" binding:"required"`
}

type MemberView struct {
	models.Member
	RoleIDs []int `json:"role_ids"`
}

// MemberService grants and revokes project roles. Callers need manage_members
// in the project and, unless admin, may only touch roles their own roles manage.
type MemberService struct {
	users   repository.UserRepository
	members repository.MemberRepository
	roles   repository.RoleRepository
	gate    *auth.Gate
}

func NewMemberService(users repository.UserRepository, members repository.MemberRepository, roles repository.RoleRepository, gate *auth.Gate) *MemberService {
	return &MemberService{users: users, members: members, roles: roles, gate: gate}
}

// SetRoles replaces the roles the user holds in the project, creating the
// membership when needed.
func (s *MemberService) SetRoles(ctx context.Context, actorID, projectID, userID int, in MemberInput) (*MemberView, error) {
	if err := s.gate.RequirePermission(ctx, actorID, projectID, auth.PermissionManageMembers); err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	roleIDs := uniqueInts(in.RoleIDs)
	if len(roleIDs) == 0 {
		return nil, core.NewFieldError("role_ids", core.ErrInvalidFieldValue)
	}
	roles, err := s.roles.GetByIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	if len(roles) != len(roleIDs) {
		return nil, core.NewFieldError("role_ids", fmt.Errorf("unknown role: %w", core.ErrInvalidFieldValue))
	}
	for i := range roles {
		if roles[i].IsBuiltin() || !roles[i].Assignable {
			return nil, core.NewFieldError("role_ids", fmt.Errorf("role %d is not assignable: %w", roles[i].ID, core.ErrInvalidFieldValue))
		}
	}

	current, err := s.currentRoleIDs(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManaged(ctx, actorID, projectID, symmetricDiff(current, roleIDs)); err != nil {
		return nil, err
	}

	member, err := s.members.SetRoles(ctx, userID, projectID, roleIDs)
	if err != nil {
		return nil, err
	}
	s.gate.Resolver().Invalidate(ctx)
	return &MemberView{Member: *member, RoleIDs: roleIDs}, nil
}

func (s *MemberService) Remove(ctx context.Context, actorID, projectID, userID int) error {
	if err := s.gate.RequirePermission(ctx, actorID, projectID, auth.PermissionManageMembers); err != nil {
		return err
	}
	current, err := s.currentRoleIDs(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.requireManaged(ctx, actorID, projectID, current); err != nil {
		return err
	}
	if err := s.members.Delete(ctx, userID, projectID); err != nil {
		return err
	}
	s.gate.Resolver().Invalidate(ctx)
	return nil
}

func (s *MemberService) currentRoleIDs(ctx context.Context, userID, projectID int) ([]int, error) {
	member, err := s.members.FindMember(ctx, userID, projectID)
	if err != nil || member == nil {
		return nil, err
	}
	return s.members.RoleIDs(ctx, member.ID)
}

// requireManaged fails unless the actor's roles in the project manage every id.
func (s *MemberService) requireManaged(ctx context.Context, actorID, projectID int, roleIDs []int) error {
	if len(roleIDs) == 0 {
		return nil
	}
	admin, err := s.gate.IsAdmin(ctx, actorID)
	if err != nil || admin {
		return err
	}
	own, err := s.gate.Resolver().RolesForProject(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	for _, id := range roleIDs {
		managed := false
		for i := range own {
			if own[i].Manages(id) {
				managed = true
				break
			}
		}
		if !managed {
			return &core.AuthorizationError{UserID: actorID, ProjectID: projectID, Permission: fmt.Sprintf("manage role %d", id)}
		}
	}
	return nil
}

func uniqueInts(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// symmetricDiff returns the ids present in exactly one of a and b.
func symmetricDiff(a, b []int) []int {
	inA := make(map[int]bool, len(a))
	for _, id := range a {
		inA[id] = true
	}
	inB := make(map[int]bool, len(b))
	var out []int
	for _, id := range b {
		inB[id] = true
		if !inA[id] {
			out = append(out, id)
		}
	}
	for _, id := range a {
		if !inB[id] {
			out = append(out, id)
		}
	}
	return out
}
