package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds connection settings. DSN, when set, is passed to the driver as is.
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DB wraps a sqlx handle with the backend it talks to.
type DB struct {
	*sqlx.DB
	Driver Driver
}

// Open connects and pings the configured database.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(driver, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver.SQLName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &DB{DB: db, Driver: driver}, nil
}

// NewDB wraps an existing connection, typically a sqlmock in tests.
func NewDB(db *sql.DB, driver Driver) *DB {
	return &DB{DB: sqlx.NewDb(db, driver.SQLName()), Driver: driver}
}

// BuildDSN renders the connection string for the driver.
func BuildDSN(driver Driver, cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch driver {
	case DriverPostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 5432))),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String(), nil
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(defaultPort(cfg.Port, 3306)))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.ClientFoundRows = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case DriverSQLite:
		name := cfg.Name
		if name == "" {
			name = "redtrack.db"
		}
		return name + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

func defaultPort(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}

// RunInTx runs fn in a transaction, committing when it returns nil. Driver
// errors from begin and commit are classified; errors returned by fn pass
// through unchanged.
func (db *DB) RunInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return Classify(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
