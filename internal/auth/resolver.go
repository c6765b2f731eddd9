package auth

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// PermissionCache stores resolved permission keys between calls. Implementations
// must be safe for concurrent use. Purge drops every entry and is called after
// any role, member or workflow mutation.
type PermissionCache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, perms []string)
	Purge(ctx context.Context) error
}

// Resolver computes the effective permissions of a user from memberships and roles.
type Resolver struct {
	members repository.MemberRepository
	roles   repository.RoleRepository
	cache   PermissionCache
	flight  singleflight.Group
	// gen advances on every Invalidate; loads started under an older
	// generation must not be written back to the cache.
	gen atomic.Uint64
}

func NewResolver(members repository.MemberRepository, roles repository.RoleRepository) *Resolver {
	return &Resolver{members: members, roles: roles}
}

// WithCache enables caching of resolved sets.
func (r *Resolver) WithCache(cache PermissionCache) *Resolver {
	r.cache = cache
	return r
}

// ResolvePermissions returns the union of the permissions of every role the
// user holds in the project. Non-members get an empty set.
func (r *Resolver) ResolvePermissions(ctx context.Context, userID, projectID int) (PermissionSet, error) {
	key := fmt.Sprintf("perm:%d:%d", userID, projectID)
	return r.cached(ctx, key, func() (PermissionSet, error) {
		roles, err := r.RolesForProject(ctx, userID, projectID)
		if err != nil {
			return nil, err
		}
		return unionRoles(roles)
	})
}

// ResolveAllPermissions unions permissions across every project the user belongs
// to. The result feeds token claims only and must not authorize a project action.
func (r *Resolver) ResolveAllPermissions(ctx context.Context, userID int) (PermissionSet, error) {
	key := fmt.Sprintf("perm:%d:all", userID)
	return r.cached(ctx, key, func() (PermissionSet, error) {
		memberships, err := r.members.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list memberships of user %d: %w", userID, err)
		}
		all := NewPermissionSet()
		for i := range memberships {
			roles, err := r.memberRoles(ctx, &memberships[i])
			if err != nil {
				return nil, err
			}
			set, err := unionRoles(roles)
			if err != nil {
				return nil, err
			}
			all = all.Union(set)
		}
		return all, nil
	})
}

// RolesForProject returns the roles the user holds in the project ordered by position.
func (r *Resolver) RolesForProject(ctx context.Context, userID, projectID int) ([]models.Role, error) {
	member, err := r.members.FindMember(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("find member user=%d project=%d: %w", userID, projectID, err)
	}
	if member == nil {
		return nil, nil
	}
	return r.memberRoles(ctx, member)
}

// Invalidate drops cached sets and discards the results of loads already in
// flight. Purge errors are logged; a stale cache entry expires on its own TTL.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	r.gen.Add(1)
	if err := r.cache.Purge(ctx); err != nil {
		log.Printf("permissions: cache purge failed: %v", err)
	}
}

func (r *Resolver) memberRoles(ctx context.Context, member *models.Member) ([]models.Role, error) {
	ids, err := r.members.RoleIDs(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("role ids of member %d: %w", member.ID, err)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	roles, err := r.roles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load roles %v: %w", ids, err)
	}
	if len(roles) != len(ids) {
		log.Printf("permissions: member %d references %d roles, found %d", member.ID, len(ids), len(roles))
		return nil, fmt.Errorf("member %d: %w: missing role rows", member.ID, core.ErrDataIntegrity)
	}

	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position < roles[j].Position
		}
		return roles[i].ID < roles[j].ID
	})
	return roles, nil
}

func (r *Resolver) cached(ctx context.Context, key string, load func() (PermissionSet, error)) (PermissionSet, error) {
	if r.cache == nil {
		return load()
	}
	if keys, ok := r.cache.Get(ctx, key); ok {
		return setFromKeys(keys), nil
	}

	gen := r.gen.Load()
	// Callers arriving after an Invalidate never join a load of an older generation.
	v, err, _ := r.flight.Do(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		set, err := load()
		if err != nil {
			return nil, err
		}
		keys := SortedKeys(set)
		if r.gen.Load() != gen {
			return keys, nil
		}
		r.cache.Set(ctx, key, keys)
		if r.gen.Load() != gen {
			// Invalidated between the check and the write.
			if err := r.cache.Purge(ctx); err != nil {
				log.Printf("permissions: cache purge failed: %v", err)
			}
		}
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	// Each caller gets its own set; shared results must not be mutated.
	return setFromKeys(v.([]string)), nil
}

// RolePermissions parses a role's stored permissions. Malformed text yields an
// empty set and is logged. A key missing from the catalog is an
// ErrDataIntegrity failure; the returned set then holds the known keys only.
func RolePermissions(role *models.Role) (PermissionSet, error) {
	out := NewPermissionSet()
	parsed, err := ParsePermissions(role.PermissionsText)
	if err != nil {
		log.Printf("permissions: skipping role %d (%s): %v", role.ID, role.Name, err)
		return out, nil
	}
	var unknown []string
	parsed.Each(func(p Permission) bool {
		if IsKnown(p) {
			out.Add(p)
		} else {
			unknown = append(unknown, string(p))
		}
		return false
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		log.Printf("permissions: role %d (%s) references %v outside the catalog", role.ID, role.Name, unknown)
		return out, fmt.Errorf("role %d: %w: unknown permissions %v", role.ID, core.ErrDataIntegrity, unknown)
	}
	return out, nil
}

func unionRoles(roles []models.Role) (PermissionSet, error) {
	set := NewPermissionSet()
	for i := range roles {
		perms, err := RolePermissions(&roles[i])
		if err != nil {
			return nil, err
		}
		set = set.Union(perms)
	}
	return set, nil
}

func setFromKeys(keys []string) PermissionSet {
	set := NewPermissionSet()
	for _, k := range keys {
		set.Add(Permission(k))
	}
	return set
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
