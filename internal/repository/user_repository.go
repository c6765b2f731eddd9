package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

const userColumns = "id, login, hashed_password, firstname, lastname, admin, status"

// SQLUserRepository reads users from the users table.
type SQLUserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (r *SQLUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, r.db.Rebind("SELECT "+userColumns+" FROM users WHERE login = ?"), login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", login, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", login, err)
	}
	return &user, nil
}

func (r *SQLUserRepository) Create(ctx context.Context, user *models.User) error {
	id, err := database.InsertID(ctx, r.db, r.db.Driver,
		"INSERT INTO users (login, hashed_password, firstname, lastname, admin, status) VALUES (?, ?, ?, ?, ?, ?)",
		user.Login, user.HashedPassword, user.FirstName, user.LastName, user.Admin, user.Status)
	if err != nil {
		return fmt.Errorf("create user %q: %w", user.Login, err)
	}
	user.ID = id
	return nil
}
