package database

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schema/redtrack.yaml
var schemaYAML []byte

// Schema is the table layout the application expects, loaded from YAML.
type Schema struct {
	Version int           `yaml:"version"`
	Tables  []TableSchema `yaml:"tables"`
	Seeds   []Seed        `yaml:"seeds"`
}

// TableSchema represents a table definition from YAML
type TableSchema struct {
	Name    string      `yaml:"name"`
	PK      string      `yaml:"pk"` // Primary key column (default "id", "none" for no key)
	Columns []ColumnDef `yaml:"columns"`
	Indexes []string    `yaml:"indexes"` // comma separated column lists
	Unique  []string    `yaml:"unique"`
}

// ColumnDef represents a column definition
type ColumnDef struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`     // varchar(200), int, serial, etc.
	Required bool        `yaml:"required"` // NOT NULL
	Default  interface{} `yaml:"default"`
}

// Seed lists rows inserted once, keyed by the value of Key.
type Seed struct {
	Table string                   `yaml:"table"`
	Key   string                   `yaml:"key"`
	Rows  []map[string]interface{} `yaml:"rows"`
}

// LoadSchema parses the embedded schema.
func LoadSchema() (*Schema, error) {
	return ParseSchema(schemaYAML)
}

// ParseSchema parses a schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if s.Version <= 0 {
		return nil, fmt.Errorf("parse schema: missing version")
	}
	for _, t := range s.Tables {
		if t.Name == "" || len(t.Columns) == 0 {
			return nil, fmt.Errorf("parse schema: table %q has no columns", t.Name)
		}
	}
	return &s, nil
}

// CreateTable renders CREATE TABLE IF NOT EXISTS for the driver.
func (d Driver) CreateTable(t TableSchema) string {
	pk := t.PK
	if pk == "" {
		pk = "id"
	}

	parts := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		parts = append(parts, d.columnSQL(col, col.Name == pk))
	}

	sql := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", d.Quote(t.Name), strings.Join(parts, ",\n    "))
	if d == DriverMySQL {
		sql += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci"
	}
	return sql
}

func (d Driver) columnSQL(col ColumnDef, primary bool) string {
	serial := strings.EqualFold(col.Type, "serial")
	colSQL := d.Quote(col.Name) + " " + d.MapType(col.Type)

	if primary {
		switch {
		case serial && d == DriverMySQL:
			return colSQL + " AUTO_INCREMENT PRIMARY KEY"
		case serial && d == DriverSQLite:
			return colSQL + " PRIMARY KEY AUTOINCREMENT"
		default:
			return colSQL + " PRIMARY KEY"
		}
	}

	if col.Required {
		colSQL += " NOT NULL"
	}
	if col.Default != nil {
		switch v := col.Default.(type) {
		case string:
			if strings.HasPrefix(v, "CURRENT_") {
				colSQL += " DEFAULT " + v
			} else {
				colSQL += " DEFAULT '" + strings.ReplaceAll(v, "'", "''") + "'"
			}
		case bool:
			if v {
				colSQL += " DEFAULT TRUE"
			} else {
				colSQL += " DEFAULT FALSE"
			}
		case int, int64, float64:
			colSQL += fmt.Sprintf(" DEFAULT %v", v)
		}
	}
	return colSQL
}

// CreateIndexes renders the index statements of a table. MySQL has no
// IF NOT EXISTS for indexes; Migrate ignores duplicate index errors there.
func (d Driver) CreateIndexes(t TableSchema) []string {
	var out []string
	add := func(spec string, unique bool) {
		cols := strings.Split(spec, ",")
		quoted := make([]string, len(cols))
		for i, c := range cols {
			cols[i] = strings.TrimSpace(c)
			quoted[i] = d.Quote(cols[i])
		}
		name := fmt.Sprintf("index_%s_on_%s", t.Name, strings.Join(cols, "_"))
		kind := "INDEX"
		if unique {
			kind = "UNIQUE INDEX"
		}
		ifNotExists := " IF NOT EXISTS"
		if d == DriverMySQL {
			ifNotExists = ""
		}
		out = append(out, fmt.Sprintf("CREATE %s%s %s ON %s (%s)",
			kind, ifNotExists, d.Quote(name), d.Quote(t.Name), strings.Join(quoted, ", ")))
	}
	for _, spec := range t.Unique {
		add(spec, true)
	}
	for _, spec := range t.Indexes {
		add(spec, false)
	}
	return out
}

// Statements returns every DDL statement of the schema in order.
func (s *Schema) Statements(d Driver) []string {
	var out []string
	for _, t := range s.Tables {
		out = append(out, d.CreateTable(t))
		out = append(out, d.CreateIndexes(t)...)
	}
	return out
}

// Insert renders a parameterized insert of one seed row with columns in
// sorted order.
func (s Seed) Insert(row map[string]interface{}) (string, []interface{}) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]interface{}, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = row[c]
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Table, strings.Join(cols, ", "), strings.Join(marks, ", ")), args
}
