package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/database"
	"github.com/redtrack-io/redtrack/internal/models"
)

// Legacy rows may carry NULL permissions.
const roleColumns = `id, name, position, assignable, builtin, COALESCE(permissions, '') AS permissions,
	issues_visibility, users_visibility, time_entries_visibility, all_roles_managed`

// SQLRoleRepository stores roles and their managed-role links.
type SQLRoleRepository struct {
	db *database.DB
}

func NewRoleRepository(db *database.DB) *SQLRoleRepository {
	return &SQLRoleRepository{db: db}
}

func (r *SQLRoleRepository) GetByID(ctx context.Context, id int) (*models.Role, error) {
	roles, err := r.GetByIDs(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("role %d: %w", id, core.ErrNotFound)
	}
	return &roles[0], nil
}

func (r *SQLRoleRepository) GetByIDs(ctx context.Context, ids []int) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+roleColumns+" FROM roles WHERE id IN (?) ORDER BY position, id", ids)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, r.db.Rebind(query), args...)
}

func (r *SQLRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	return r.query(ctx, "SELECT "+roleColumns+" FROM roles ORDER BY position, id")
}

func (r *SQLRoleRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query, args...); err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, nil
	}

	ids := make([]int, len(roles))
	for i := range roles {
		ids[i] = roles[i].ID
	}

	q, qargs, err := sqlx.In("SELECT role_id, managed_role_id FROM roles_managed_roles WHERE role_id IN (?) ORDER BY managed_role_id", ids)
	if err != nil {
		return nil, err
	}
	var links []struct {
		RoleID        int `db:"role_id"`
		ManagedRoleID int `db:"managed_role_id"`
	}
	if err := r.db.SelectContext(ctx, &links, r.db.Rebind(q), qargs...); err != nil {
		return nil, fmt.Errorf("select managed roles: %w", err)
	}
	byRole := make(map[int][]int, len(links))
	for _, l := range links {
		byRole[l.RoleID] = append(byRole[l.RoleID], l.ManagedRoleID)
	}
	for i := range roles {
		roles[i].ManagedRoleIDs = byRole[roles[i].ID]
	}
	return roles, nil
}

func (r *SQLRoleRepository) Create(ctx context.Context, role *models.Role) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		id, err := database.InsertID(ctx, tx, r.db.Driver,
			`INSERT INTO roles (name, position, assignable, builtin, permissions, issues_visibility,
				users_visibility, time_entries_visibility, all_roles_managed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			role.Name, role.Position, role.Assignable, role.Builtin, role.PermissionsText,
			role.IssuesVisibility, role.UsersVisibility, role.TimeEntriesVisibility, role.AllRolesManaged)
		if err != nil {
			return fmt.Errorf("insert role %q: %w", role.Name, err)
		}
		role.ID = id
		return r.writeManaged(ctx, tx, role)
	})
}

func (r *SQLRoleRepository) Update(ctx context.Context, role *models.Role) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE roles SET name = ?, position = ?, assignable = ?,
			permissions = ?, issues_visibility = ?, users_visibility = ?, time_entries_visibility = ?,
			all_roles_managed = ? WHERE id = ?`),
			role.Name, role.Position, role.Assignable, role.PermissionsText, role.IssuesVisibility,
			role.UsersVisibility, role.TimeEntriesVisibility, role.AllRolesManaged, role.ID)
		if err != nil {
			return fmt.Errorf("update role %d: %w", role.ID, err)
		}
		if err := expectRow(res, fmt.Errorf("role %d: %w", role.ID, core.ErrNotFound)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM roles_managed_roles WHERE role_id = ?"), role.ID); err != nil {
			return fmt.Errorf("clear managed roles: %w", err)
		}
		return r.writeManaged(ctx, tx, role)
	})
}

func (r *SQLRoleRepository) Delete(ctx context.Context, id int) error {
	return r.db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM roles_managed_roles WHERE role_id = ? OR managed_role_id = ?"), id, id); err != nil {
			return fmt.Errorf("clear managed roles: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM roles WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("delete role %d: %w", id, err)
		}
		return expectRow(res, fmt.Errorf("role %d: %w", id, core.ErrNotFound))
	})
}

func (r *SQLRoleRepository) writeManaged(ctx context.Context, tx *sqlx.Tx, role *models.Role) error {
	for _, managed := range role.ManagedRoleIDs {
		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO roles_managed_roles (role_id, managed_role_id) VALUES (?, ?)"), role.ID, managed); err != nil {
			return fmt.Errorf("insert managed role %d: %w", managed, err)
		}
	}
	return nil
}

// expectRow returns notFound when the statement touched no row.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
