package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

const statusColumns = "id, name, is_closed, position, default_done_ratio"

type SQLIssueStatusRepository struct {
	db *database.DB
}

func NewIssueStatusRepository(db *database.DB) *SQLIssueStatusRepository {
	return &SQLIssueStatusRepository{db: db}
}

func (r *SQLIssueStatusRepository) GetByID(ctx context.Context, id int) (*models.IssueStatus, error) {
	var status models.IssueStatus
	err := r.db.GetContext(ctx, &status, r.db.Rebind("SELECT "+statusColumns+" FROM issue_statuses WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue status %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue status %d: %w", id, err)
	}
	return &status, nil
}

func (r *SQLIssueStatusRepository) GetByIDs(ctx context.Context, ids []int) ([]models.IssueStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+statusColumns+" FROM issue_statuses WHERE id IN (?) ORDER BY position, id", ids)
	if err != nil {
		return nil, err
	}
	var statuses []models.IssueStatus
	if err := r.db.SelectContext(ctx, &statuses, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select issue statuses: %w", err)
	}
	return statuses, nil
}

func (r *SQLIssueStatusRepository) List(ctx context.Context) ([]models.IssueStatus, error) {
	var statuses []models.IssueStatus
	if err := r.db.SelectContext(ctx, &statuses, "SELECT "+statusColumns+" FROM issue_statuses ORDER BY position, id"); err != nil {
		return nil, fmt.Errorf("list issue statuses: %w", err)
	}
	return statuses, nil
}
