// Package redis provides Redis-backed repositories for agents, plans and
// evaluations.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// ErrConnectionFailed is returned when the server cannot be reached.
var ErrConnectionFailed = errors.New("redis: connection failed")

// Config describes how the store reaches Redis and namespaces its keys.
type Config struct {
	Address  string
	Password string
	DB       int

	MaxRetries int
	PoolSize   int
	// DialTimeout also bounds the initial PING.
	DialTimeout time.Duration
	IOTimeout   time.Duration

	// KeyPrefix namespaces every agent, plan and evaluation key.
	KeyPrefix string
}

// DefaultConfig targets a local server under the "ragent:" namespace.
func DefaultConfig() Config {
	return Config{
		Address:     "localhost:6379",
		MaxRetries:  3,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
		IOTimeout:   3 * time.Second,
		KeyPrefix:   "ragent:",
	}
}

// ConfigOption mutates a Config before the client is built.
type ConfigOption func(*Config)

func WithAddress(addr string) ConfigOption { return func(c *Config) { c.Address = addr } }
func WithPassword(pw string) ConfigOption { return func(c *Config) { c.Password = pw } }
func WithDB(db int) ConfigOption { return func(c *Config) { c.DB = db } }
func WithKeyPrefix(p string) ConfigOption { return func(c *Config) { c.KeyPrefix = p } }

// FromSettings applies the storage.redis section of a ragent configuration.
// Empty fields keep whatever the Config already holds.
func FromSettings(s config.RedisConfig) ConfigOption {
	return func(c *Config) {
		if s.Address != "" {
			c.Address = s.Address
		}
		if s.KeyPrefix != "" {
			c.KeyPrefix = s.KeyPrefix
		}
		c.Password = s.Password
		c.DB = s.DB
	}
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Address,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.IOTimeout,
		WriteTimeout: c.IOTimeout,
	}
}

// NewClient builds a client and pings the server before returning it.
func NewClient(ctx context.Context, cfg Config, opts ...ConfigOption) (*redis.Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	client := redis.NewClient(cfg.options())

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return client, nil
}
