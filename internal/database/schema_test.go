package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)

	names := make(map[string]bool)
	for _, tbl := range s.Tables {
		names[tbl.Name] = true
	}
	for _, want := range []string{"users", "roles", "members", "member_roles", "workflows", "issues", "issue_relations", "journals", "journal_details"} {
		assert.True(t, names[want], want)
	}
}

func TestParseSchemaRejectsEmptyTables(t *testing.T) {
	_, err := ParseSchema([]byte("version: 1\ntables:\n  - name: empty\n"))
	assert.Error(t, err)

	_, err = ParseSchema([]byte("tables: []\n"))
	assert.Error(t, err)
}

func TestCreateTable(t *testing.T) {
	tbl := TableSchema{
		Name: "issue_relations",
		Columns: []ColumnDef{
			{Name: "id", Type: "serial"},
			{Name: "relation_type", Type: "varchar(255)", Required: true, Default: "relates"},
			{Name: "delay", Type: "int"},
		},
		Unique: []string{"issue_from_id,issue_to_id"},
	}

	pg := DriverPostgres.CreateTable(tbl)
	assert.Contains(t, pg, `"id" SERIAL PRIMARY KEY`)
	assert.Contains(t, pg, `"relation_type" VARCHAR(255) NOT NULL DEFAULT 'relates'`)

	my := DriverMySQL.CreateTable(tbl)
	assert.Contains(t, my, "`id` INT AUTO_INCREMENT PRIMARY KEY")
	assert.True(t, strings.HasSuffix(my, "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"))

	lite := DriverSQLite.CreateTable(tbl)
	assert.Contains(t, lite, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`)
	assert.Contains(t, lite, `"relation_type" TEXT NOT NULL`)

	idx := DriverPostgres.CreateIndexes(tbl)
	require.Len(t, idx, 1)
	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "index_issue_relations_on_issue_from_id_issue_to_id" ON "issue_relations" ("issue_from_id", "issue_to_id")`, idx[0])

	assert.NotContains(t, DriverMySQL.CreateIndexes(tbl)[0], "IF NOT EXISTS")
}

func TestSeedInsert(t *testing.T) {
	seed := Seed{Table: "roles", Key: "builtin"}
	sql, args := seed.Insert(map[string]interface{}{"name": "Anonymous", "builtin": 2})
	assert.Equal(t, "INSERT INTO roles (builtin, name) VALUES (?, ?)", sql)
	assert.Equal(t, []interface{}{2, "Anonymous"}, args)
}

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"postgresql": DriverPostgres, "MariaDB": DriverMySQL, "sqlite3": DriverSQLite} {
		got, err := ParseDriver(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDriver("oracle")
	assert.Error(t, err)

	assert.Equal(t, " FOR UPDATE", DriverPostgres.ForUpdate())
	assert.Equal(t, "", DriverSQLite.ForUpdate())
}

func TestBuildDSN(t *testing.T) {
	dsn, err := BuildDSN(DriverPostgres, Config{Host: "db", Name: "redtrack", User: "rt", Password: "p@ss"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://rt:p%40ss@db:5432/redtrack?sslmode=disable", dsn)

	dsn, err = BuildDSN(DriverMySQL, Config{Host: "db", Port: 3307, Name: "redtrack", User: "rt", Password: "secret"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "rt:secret@tcp(db:3307)/redtrack?")
	assert.Contains(t, dsn, "parseTime=true")

	dsn, err = BuildDSN(DriverSQLite, Config{Name: "/tmp/rt.db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/rt.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", dsn)

	dsn, _ = BuildDSN(DriverPostgres, Config{DSN: "postgres://override"})
	assert.Equal(t, "postgres://override", dsn)
}
