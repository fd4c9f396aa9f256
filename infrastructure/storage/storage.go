// Package storage wires the configured repository and event store backends.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/domain/agent"
	"github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/evaluation"
	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/domain/plan"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/badger"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/cache"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/redis"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/sqlite"
)

// ErrUnknownBackend is returned for an unrecognized backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Repositories bundles the persistence collaborators.
type Repositories struct {
	Agents      agent.Repository
	Plans       plan.Repository
	Evaluations evaluation.Repository

	// Events is nil when the event store is disabled.
	Events event.Store

	closers []func() error
}

// Open builds repositories for the storage section and an event store for
// the events section.
func Open(ctx context.Context, sc config.StorageConfig, ec config.EventsConfig) (*Repositories, error) {
	r := &Repositories{}
	if err := r.openRepositories(ctx, sc); err != nil {
		_ = r.Close()
		return nil, err
	}
	if err := r.openEvents(ec); err != nil {
		_ = r.Close()
		return nil, err
	}

	if sc.CacheSize > 0 {
		cached, err := cache.NewAgentRepository(r.Agents, sc.CacheSize)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.Agents = cached
	}

	logging.Info().
		Add(logging.Component("storage")).
		Add(logging.Backend(backendName(sc.Backend))).
		Add(logging.Str("events", backendName(ec.Backend))).
		Add(logging.Count("cache_size", sc.CacheSize)).
		Msg("storage ready")
	return r, nil
}

func (r *Repositories) openRepositories(ctx context.Context, sc config.StorageConfig) error {
	switch sc.Backend {
	case "", "memory":
		r.Agents = memory.NewAgentRepository()
		r.Plans = memory.NewPlanRepository()
		r.Evaluations = memory.NewEvaluationRepository()

	case "sqlite":
		store, err := sqlite.New(sqlite.DefaultConfig(), sqlite.FromSettings(sc.SQLite))
		if err != nil {
			return err
		}
		r.closers = append(r.closers, store.Close)
		r.Agents, r.Plans, r.Evaluations = store.Agents(), store.Plans(), store.Evaluations()

	case "postgres":
		store, err := postgres.Open(ctx, postgres.DefaultConfig(), postgres.FromSettings(sc.Postgres))
		if err != nil {
			return err
		}
		r.closers = append(r.closers, store.Close)
		r.Agents, r.Plans, r.Evaluations = store.Agents(), store.Plans(), store.Evaluations()

	case "redis":
		store, err := redis.Open(ctx, redis.DefaultConfig(), redis.FromSettings(sc.Redis))
		if err != nil {
			return err
		}
		r.closers = append(r.closers, store.Close)
		r.Agents, r.Plans, r.Evaluations = store.Agents(), store.Plans(), store.Evaluations()

	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, sc.Backend)
	}
	return nil
}

func (r *Repositories) openEvents(ec config.EventsConfig) error {
	switch ec.Backend {
	case "", "memory":
		r.Events = memory.NewEventStore()
	case "none":
		r.Events = nil
	case "badger":
		store, err := badger.NewEventStore(badger.DefaultConfig(), badger.FromSettings(ec.Badger))
		if err != nil {
			return err
		}
		r.closers = append(r.closers, store.Close)
		r.Events = store
	default:
		return fmt.Errorf("%w: events %s", ErrUnknownBackend, ec.Backend)
	}
	return nil
}

// Close releases every opened backend.
func (r *Repositories) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func backendName(name string) string {
	if name == "" {
		return "memory"
	}
	return name
}
