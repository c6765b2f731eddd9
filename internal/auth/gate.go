package auth

import (
	"context"
	"fmt"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/metrics"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// Gate answers project-scoped authorization questions. It holds no state of its
// own and is safe for concurrent use.
type Gate struct {
	users    repository.UserRepository
	resolver *Resolver
}

func NewGate(users repository.UserRepository, resolver *Resolver) *Gate {
	return &Gate{users: users, resolver: resolver}
}

// Resolver returns the resolver the gate delegates to.
func (g *Gate) Resolver() *Resolver {
	return g.resolver
}

// HasPermission reports whether the user may perform perm in the project.
// Active administrators are granted everything without consulting memberships.
// Unknown and locked users are denied.
func (g *Gate) HasPermission(ctx context.Context, userID, projectID int, perm Permission) (bool, error) {
	user, err := g.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	switch {
	case user == nil || user.IsLocked():
		metrics.PermissionChecks.WithLabelValues("denied").Inc()
		return false, nil
	case user.IsAdmin():
		metrics.PermissionChecks.WithLabelValues("admin").Inc()
		return true, nil
	case !IsKnown(perm):
		metrics.PermissionChecks.WithLabelValues("denied").Inc()
		return false, nil
	}

	set, err := g.resolver.ResolvePermissions(ctx, userID, projectID)
	if err != nil {
		return false, err
	}
	if set.Contains(perm) {
		metrics.PermissionChecks.WithLabelValues("granted").Inc()
		return true, nil
	}
	metrics.PermissionChecks.WithLabelValues("denied").Inc()
	return false, nil
}

// RequirePermission returns a *core.AuthorizationError when HasPermission is false.
func (g *Gate) RequirePermission(ctx context.Context, userID, projectID int, perm Permission) error {
	ok, err := g.HasPermission(ctx, userID, projectID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return &core.AuthorizationError{UserID: userID, ProjectID: projectID, Permission: string(perm)}
	}
	return nil
}

// HasAnyPermission reports whether at least one of perms is granted.
func (g *Gate) HasAnyPermission(ctx context.Context, userID, projectID int, perms ...Permission) (bool, error) {
	for _, p := range perms {
		ok, err := g.HasPermission(ctx, userID, projectID, p)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// AllowedActions returns every permission the user holds in the project.
// Administrators receive the full catalog.
func (g *Gate) AllowedActions(ctx context.Context, userID, projectID int) (PermissionSet, error) {
	user, err := g.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsLocked() {
		return NewPermissionSet(), nil
	}
	if user.IsAdmin() {
		all := NewPermissionSet()
		for _, info := range Catalog() {
			all.Add(info.Key)
		}
		return all, nil
	}
	return g.resolver.ResolvePermissions(ctx, userID, projectID)
}

// IsAdmin reports whether the user is an active administrator.
func (g *Gate) IsAdmin(ctx context.Context, userID int) (bool, error) {
	user, err := g.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// RequireAdmin fails with an authorization error unless the user is an active administrator.
func (g *Gate) RequireAdmin(ctx context.Context, userID int) error {
	ok, err := g.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return &core.AuthorizationError{UserID: userID, Permission: "admin"}
	}
	return nil
}

// lookup returns nil, nil for unknown users.
func (g *Gate) lookup(ctx context.Context, userID int) (*models.User, error) {
	user, err := g.users.GetByID(ctx, userID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}
