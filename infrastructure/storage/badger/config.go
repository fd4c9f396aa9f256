// Package badger provides a BadgerDB-backed event store.
package badger

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// ErrConnectionFailed is returned when the database cannot be opened.
var ErrConnectionFailed = errors.New("badger: connection failed")

// Config describes where domain events are persisted.
type Config struct {
	// Dir is ignored when InMemory is set.
	Dir        string
	InMemory   bool
	SyncWrites bool

	NumVersionsToKeep int

	// GCInterval of zero disables value log GC. In-memory stores never run it.
	GCInterval     time.Duration
	GCDiscardRatio float64

	KeyPrefix string

	// Logger receives badger's own log lines; nil routes them through the
	// ragent logger.
	Logger badger.Logger
}

// DefaultConfig keeps one version per event and collects garbage every
// five minutes.
func DefaultConfig() Config {
	return Config{
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// Option mutates a Config before the database is opened.
type Option func(*Config)

func WithDir(dir string) Option { return func(c *Config) { c.Dir = dir } }
func WithInMemory() Option { return func(c *Config) { c.InMemory = true } }
func WithKeyPrefix(prefix string) Option { return func(c *Config) { c.KeyPrefix = prefix } }

// FromSettings applies the events.badger section of a ragent configuration.
func FromSettings(s config.BadgerConfig) Option {
	return func(c *Config) {
		c.Dir = s.Dir
		c.InMemory = s.InMemory
	}
}

func (c Config) options() badger.Options {
	opts := badger.DefaultOptions(c.Dir)
	if c.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	opts = opts.WithSyncWrites(c.SyncWrites)
	if c.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(c.NumVersionsToKeep)
	}
	if c.Logger != nil {
		return opts.WithLogger(c.Logger)
	}
	return opts.WithLogger(boltLogger{})
}

func openDB(cfg Config) (*badger.DB, error) {
	db, err := badger.Open(cfg.options())
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return db, nil
}
