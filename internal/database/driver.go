package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Driver identifies a supported database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// ParseDriver normalizes a configured driver name.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgsql":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// SQLName is the name the driver registers with database/sql.
func (d Driver) SQLName() string {
	if d == DriverSQLite {
		return "sqlite3"
	}
	return string(d)
}

// BindType returns the sqlx placeholder style of the driver.
func (d Driver) BindType() int {
	return sqlx.BindType(d.SQLName())
}

// ForUpdate returns the row locking clause, empty where unsupported. SQLite
// serializes writers with BEGIN IMMEDIATE instead.
func (d Driver) ForUpdate() string {
	if d == DriverSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// Quote quotes an identifier.
func (d Driver) Quote(name string) string {
	if d == DriverMySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// MapType converts a schema type to the driver's column type.
func (d Driver) MapType(schemaType string) string {
	t := strings.ToLower(schemaType)
	if strings.HasPrefix(t, "varchar") {
		if d == DriverSQLite {
			return "TEXT"
		}
		return strings.ToUpper(t)
	}

	switch d {
	case DriverMySQL:
		switch t {
		case "serial", "int", "integer":
			return "INT"
		case "boolean", "bool":
			return "TINYINT(1)"
		case "timestamp":
			return "DATETIME"
		case "float", "double":
			return "DOUBLE"
		}
	case DriverSQLite:
		switch t {
		case "serial", "int", "integer":
			return "INTEGER"
		case "boolean", "bool":
			return "BOOLEAN"
		case "float", "double":
			return "REAL"
		}
	default:
		switch t {
		case "serial":
			return "SERIAL"
		case "int", "integer":
			return "INTEGER"
		case "boolean", "bool":
			return "BOOLEAN"
		case "float", "double":
			return "DOUBLE PRECISION"
		}
	}
	return strings.ToUpper(t)
}
