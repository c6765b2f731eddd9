package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-sql-driver/mysql"
)

const migrationsTable = "schema_migrations"

// Migrate creates the schema when its version has not been applied yet and
// inserts seed rows. It returns the number of statements executed.
func Migrate(ctx context.Context, db *DB) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	schema, err := LoadSchema()
	if err != nil {
		return 0, err
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version INTEGER NOT NULL PRIMARY KEY)", migrationsTable)
	if _, err := db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create %s: %w", migrationsTable, err)
	}

	var applied int
	q := db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE version = ?", migrationsTable))
	if err := db.GetContext(ctx, &applied, q, schema.Version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if applied > 0 {
		log.Printf("migrations: schema version %d already applied", schema.Version)
		return 0, nil
	}

	log.Printf("migrations: applying schema version %d with driver %s", schema.Version, db.Driver)
	n := 0
	for _, stmt := range schema.Statements(db.Driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateIndex(err) {
				continue
			}
			return n, fmt.Errorf("migration statement failed: %w\n%s", err, stmt)
		}
		n++
	}

	for _, seed := range schema.Seeds {
		for _, row := range seed.Rows {
			var exists int
			check := db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", seed.Table, seed.Key))
			if err := db.GetContext(ctx, &exists, check, row[seed.Key]); err != nil {
				return n, fmt.Errorf("seed %s: %w", seed.Table, err)
			}
			if exists > 0 {
				continue
			}
			insert, args := seed.Insert(row)
			if _, err := db.ExecContext(ctx, db.Rebind(insert), args...); err != nil {
				return n, fmt.Errorf("seed %s: %w", seed.Table, err)
			}
			n++
		}
	}

	mark := db.Rebind(fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", migrationsTable))
	if _, err := db.ExecContext(ctx, mark, schema.Version); err != nil {
		return n, fmt.Errorf("record schema version: %w", err)
	}
	log.Printf("migrations: applied %d statements", n)
	return n, nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}
