package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
)

// RoleRepository provides an in-memory implementation of repository.RoleRepository
type RoleRepository struct {
	roles  map[int]*models.Role
	nextID int
	mu     sync.RWMutex
}

// NewRoleRepository creates a role repository seeded with the two builtin roles
func NewRoleRepository() *RoleRepository {
	repo := &RoleRepository{
		roles:  make(map[int]*models.Role),
		nextID: 3,
	}
	repo.roles[1] = &models.Role{ID: 1, Name: "Non member", Position: 1, Builtin: models.BuiltinNonMember}
	repo.roles[2] = &models.Role{ID: 2, Name: "Anonymous", Position: 2, Builtin: models.BuiltinAnonymous}
	for _, role := range repo.roles {
		role.ApplyDefaults()
	}
	return repo
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return fmt.Errorf("role %q already exists", role.Name)
		}
	}
	role.ID = r.nextID
	r.nextID++
	if role.Position == 0 {
		role.Position = role.ID
	}
	r.roles[role.ID] = cloneRole(role)
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id int) (*models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, exists := r.roles[id]
	if !exists {
		return nil, fmt.Errorf("role %d: %w", id, core.ErrNotFound)
	}
	return cloneRole(role), nil
}

func (r *RoleRepository) GetByIDs(ctx context.Context, ids []int) ([]models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := r.roles[id]; ok {
			out = append(out, *cloneRole(role))
		}
	}
	return out, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, *cloneRole(role))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *RoleRepository) Update(ctx context.Context, role *models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.roles[role.ID]; !exists {
		return fmt.Errorf("role %d: %w", role.ID, core.ErrNotFound)
	}
	r.roles[role.ID] = cloneRole(role)
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.roles[id]; !exists {
		return fmt.Errorf("role %d: %w", id, core.ErrNotFound)
	}
	delete(r.roles, id)
	return nil
}

func cloneRole(role *models.Role) *models.Role {
	c := *role
	c.ManagedRoleIDs = append([]int(nil), role.ManagedRoleIDs...)
	return &c
}
