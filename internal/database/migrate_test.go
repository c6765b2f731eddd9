package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	schema, err := LoadSchema()
	require.NoError(t, err)

	t.Run("applies schema and seeds", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()
		db := NewDB(mockDB, DriverPostgres)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_migrations WHERE version = $1")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		stmts := schema.Statements(DriverPostgres)
		for _, stmt := range stmts {
			mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
		}
		// Non member already present, Anonymous missing.
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles WHERE builtin = $1")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roles WHERE builtin = $1")).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles (builtin, name, permissions, position) VALUES ($1, $2, $3, $4)")).
			WithArgs(2, "Anonymous", "[]", 2).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := Migrate(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, len(stmts)+1, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied version", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()
		db := NewDB(mockDB, DriverMySQL)

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schema_migrations WHERE version = ?")).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		n, err := Migrate(ctx, db)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
