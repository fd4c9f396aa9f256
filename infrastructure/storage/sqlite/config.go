// Package sqlite provides SQLite-backed repositories for agents, plans and
// evaluations.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/ragent/domain/config"
)

var (
	ErrConnectionFailed = errors.New("sqlite: connection failed")
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// Config describes the database file and connection tuning.
type Config struct {
	DSN string

	// MaxOpenConns stays at 1: SQLite serializes writers and the
	// compare-and-swap updates rely on a single connection.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// AutoMigrate creates the tables on open.
	AutoMigrate bool
	// JournalMode is ignored for :memory: databases.
	JournalMode string
	// BusyTimeout is in milliseconds.
	BusyTimeout int
}

// DefaultConfig stores everything in ./ragent.db using WAL.
func DefaultConfig() Config {
	return Config{
		DSN:             "file:ragent.db?cache=shared&mode=rwc",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
		JournalMode:     "WAL",
		BusyTimeout:     5000,
	}
}

// Option mutates a Config before the database is opened.
type Option func(*Config)

func WithDSN(dsn string) Option { return func(c *Config) { c.DSN = dsn } }
func WithAutoMigrate(on bool) Option { return func(c *Config) { c.AutoMigrate = on } }
func WithJournalMode(mode string) Option { return func(c *Config) { c.JournalMode = mode } }

// FromSettings applies the storage.sqlite section of a ragent configuration.
func FromSettings(s config.SQLiteConfig) Option {
	return func(c *Config) {
		if s.DSN != "" {
			c.DSN = s.DSN
		}
	}
}

func (c Config) pragmas() []string {
	var out []string
	if c.JournalMode != "" && !strings.Contains(c.DSN, ":memory:") {
		out = append(out, "PRAGMA journal_mode="+c.JournalMode)
	}
	if c.BusyTimeout > 0 {
		out = append(out, fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout))
	}
	return append(out, "PRAGMA foreign_keys=ON")
}

func openDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for _, p := range cfg.pragmas() {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errors.Join(ErrMigrationFailed, err)
		}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
