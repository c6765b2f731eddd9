package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InsertID runs an INSERT written with ? placeholders and returns the new row
// id, using RETURNING on PostgreSQL and LastInsertId elsewhere. ext may be a
// *sqlx.DB or a *sqlx.Tx.
func InsertID(ctx context.Context, ext sqlx.ExtContext, driver Driver, query string, args ...interface{}) (int, error) {
	if driver == DriverPostgres {
		var id int
		if err := ext.QueryRowxContext(ctx, ext.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}
