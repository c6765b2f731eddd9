package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
)

// UserRepository provides an in-memory implementation of repository.UserRepository
type UserRepository struct {
	users  map[int]*models.User
	nextID int
	mu     sync.RWMutex
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[int]*models.User),
		nextID: 1,
	}
}

// Create stores a user, assigning an id when none is set
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == 0 {
		user.ID = r.nextID
	}
	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("user %d already exists", user.ID)
	}
	if user.ID >= r.nextID {
		r.nextID = user.ID + 1
	}
	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	u := *user
	return &u, nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Login == login {
			u := *user
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", login, core.ErrNotFound)
}
