package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

const memberColumns = "id, user_id, project_id, created_on"

// SQLMemberRepository stores memberships in members and member_roles.
type SQLMemberRepository struct {
	db *database.DB
}

func NewMemberRepository(db *database.DB) *SQLMemberRepository {
	return &SQLMemberRepository{db: db}
}

func (r *SQLMemberRepository) FindMember(ctx context.Context, userID, projectID int) (*models.Member, error) {
	var member models.Member
	err := r.db.GetContext(ctx, &member,
		r.db.Rebind("SELECT "+memberColumns+" FROM members WHERE user_id = ? AND project_id = ?"), userID, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find member user=%d project=%d: %w", userID, projectID, err)
	}
	return &member, nil
}

func (r *SQLMemberRepository) ListByUser(ctx context.Context, userID int) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		r.db.Rebind("SELECT "+memberColumns+" FROM members WHERE user_id = ? ORDER BY project_id"), userID)
	if err != nil {
		return nil, fmt.Errorf("list members of user %d: %w", userID, err)
	}
	return members, nil
}

func (r *SQLMemberRepository) RoleIDs(ctx context.Context, memberID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		r.db.Rebind("SELECT DISTINCT role_id FROM member_roles WHERE member_id = ? ORDER BY role_id"), memberID)
	if err != nil {
		return nil, fmt.Errorf("member %d roles: %w", memberID, err)
	}
	return ids, nil
}

func (r *SQLMemberRepository) SetRoles(ctx context.Context, userID, projectID int, roleIDs []int) (*models.Member, error) {
	var member models.Member
	err := r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &member, tx.Rebind("SELECT "+memberColumns+
			" FROM members WHERE user_id = ? AND project_id = ?"+r.db.Driver.ForUpdate()), userID, projectID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			member = models.Member{UserID: userID, ProjectID: projectID, CreatedOn: time.Now().UTC()}
			id, err := database.InsertID(ctx, tx, r.db.Driver,
				"INSERT INTO members (user_id, project_id, created_on) VALUES (?, ?, ?)",
				userID, projectID, member.CreatedOn)
			if err != nil {
				if database.IsUniqueViolation(err) {
					return fmt.Errorf("member user=%d project=%d: %w", userID, projectID, core.ErrConcurrentModification)
				}
				return fmt.Errorf("insert member: %w", err)
			}
			member.ID = id
		case err != nil:
			return fmt.Errorf("lock member: %w", err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM member_roles WHERE member_id = ? AND inherited_from IS NULL"), member.ID); err != nil {
			return fmt.Errorf("clear member roles: %w", err)
		}
		for _, roleID := range roleIDs {
			if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO member_roles (member_id, role_id) VALUES (?, ?)"), member.ID, roleID); err != nil {
				return fmt.Errorf("insert member role %d: %w", roleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *SQLMemberRepository) Delete(ctx context.Context, userID, projectID int) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		var memberID int
		err := tx.GetContext(ctx, &memberID,
			tx.Rebind("SELECT id FROM members WHERE user_id = ? AND project_id = ?"), userID, projectID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("member user=%d project=%d: %w", userID, projectID, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("find member: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM member_roles WHERE member_id = ?"), memberID); err != nil {
			return fmt.Errorf("delete member roles: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM members WHERE id = ?"), memberID); err != nil {
			return fmt.Errorf("delete member %d: %w", memberID, err)
		}
		return nil
	})
}

func (r *SQLMemberRepository) CountByRole(ctx context.Context, roleID int) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		r.db.Rebind("SELECT COUNT(DISTINCT member_id) FROM member_roles WHERE role_id = ?"), roleID)
	if err != nil {
		return 0, fmt.Errorf("count members with role %d: %w", roleID, err)
	}
	return n, nil
}
