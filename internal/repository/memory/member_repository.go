package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
)

// MemberRepository provides an in-memory implementation of repository.MemberRepository
type MemberRepository struct {
	members map[int]*models.Member
	roles   map[int][]int
	nextID  int
	mu      sync.RWMutex
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{
		members: make(map[int]*models.Member),
		roles:   make(map[int][]int),
		nextID:  1,
	}
}

func (r *MemberRepository) FindMember(ctx context.Context, userID, projectID int) (*models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m := r.find(userID, projectID); m != nil {
		c := *m
		return &c, nil
	}
	return nil, nil
}

func (r *MemberRepository) ListByUser(ctx context.Context, userID int) ([]models.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Member
	for _, m := range r.members {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (r *MemberRepository) RoleIDs(ctx context.Context, memberID int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]int(nil), r.roles[memberID]...), nil
}

func (r *MemberRepository) SetRoles(ctx context.Context, userID, projectID int, roleIDs []int) (*models.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.find(userID, projectID)
	if m == nil {
		m = &models.Member{ID: r.nextID, UserID: userID, ProjectID: projectID, CreatedOn: time.Now()}
		r.nextID++
		r.members[m.ID] = m
	}
	r.roles[m.ID] = append([]int(nil), roleIDs...)
	c := *m
	return &c, nil
}

func (r *MemberRepository) Delete(ctx context.Context, userID, projectID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.find(userID, projectID)
	if m == nil {
		return fmt.Errorf("member user=%d project=%d: %w", userID, projectID, core.ErrNotFound)
	}
	delete(r.members, m.ID)
	delete(r.roles, m.ID)
	return nil
}

func (r *MemberRepository) CountByRole(ctx context.Context, roleID int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, ids := range r.roles {
		for _, id := range ids {
			if id == roleID {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *MemberRepository) find(userID, projectID int) *models.Member {
	for _, m := range r.members {
		if m.UserID == userID && m.ProjectID == projectID {
			return m
		}
	}
	return nil
}
