// Package postgres provides PostgreSQL-backed repositories for agents, plans
// and evaluations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// ErrConnectionFailed is returned when the pool cannot reach the server.
var ErrConnectionFailed = errors.New("postgres: connection failed")

// Config locates the database and sizes the pool. A non-empty DSN takes
// precedence over the discrete connection fields.
type Config struct {
	DSN string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Schema holds the agents, plans, evaluations and improvements tables.
	Schema string
}

// DefaultConfig targets a local "ragent" database in the public schema.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "ragent",
		User:            "postgres",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		Schema:          "public",
	}
}

// ConnectionString renders the keyword/value form pgx parses.
func (c Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// ConfigOption mutates a Config before the pool is built.
type ConfigOption func(*Config)

func WithDSN(dsn string) ConfigOption { return func(c *Config) { c.DSN = dsn } }
func WithDatabase(name string) ConfigOption { return func(c *Config) { c.Database = name } }
func WithSchema(schema string) ConfigOption { return func(c *Config) { c.Schema = schema } }

// WithCredentials sets the login role.
func WithCredentials(user, password string) ConfigOption {
	return func(c *Config) {
		c.User, c.Password = user, password
	}
}

// FromSettings applies the storage.postgres section of a ragent
// configuration. Empty fields keep whatever the Config already holds.
func FromSettings(s config.PostgresConfig) ConfigOption {
	return func(c *Config) {
		if s.DSN != "" {
			c.DSN = s.DSN
		}
		if s.Schema != "" {
			c.Schema = s.Schema
		}
	}
}

func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	if c.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return pc, nil
}

// NewPool builds a pool and pings the server before returning it.
func NewPool(ctx context.Context, cfg Config, opts ...ConfigOption) (*pgxpool.Pool, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return pool, nil
}
