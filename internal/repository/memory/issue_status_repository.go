package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
)

type IssueStatusRepository struct {
	statuses map[int]models.IssueStatus
	mu       sync.RWMutex
}

func NewIssueStatusRepository(statuses ...models.IssueStatus) *IssueStatusRepository {
	repo := &IssueStatusRepository{statuses: make(map[int]models.IssueStatus)}
	for _, s := range statuses {
		repo.statuses[s.ID] = s
	}
	return repo
}

func (r *IssueStatusRepository) GetByID(ctx context.Context, id int) (*models.IssueStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.statuses[id]
	if !ok {
		return nil, fmt.Errorf("issue status %d: %w", id, core.ErrNotFound)
	}
	return &s, nil
}

func (r *IssueStatusRepository) GetByIDs(ctx context.Context, ids []int) ([]models.IssueStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.IssueStatus, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.statuses[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *IssueStatusRepository) List(ctx context.Context) ([]models.IssueStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.IssueStatus, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
