package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/ragent/domain/event"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
)

// EventStore is a BadgerDB-backed implementation of event.Store.
//
// Keys:
//
//	<prefix>events:<agentID>:<seq as 8 bytes big-endian>  event JSON
//	<prefix>seq:<agentID>                                 last sequence
type EventStore struct {
	db        *badger.DB
	keyPrefix string

	mu     sync.RWMutex
	closed bool

	gcStop chan struct{}
	gcWg   sync.WaitGroup
}

// NewEventStore opens a BadgerDB event store with the given configuration.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := NewEventStoreFromDB(db, cfg.KeyPrefix)
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// NewEventStoreFromDB creates an event store from an existing database.
func NewEventStoreFromDB(db *badger.DB, keyPrefix string) *EventStore {
	return &EventStore{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

func (s *EventStore) startGC(interval time.Duration, discardRatio float64) {
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				// RunValueLogGC rewrites at most one file per call.
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

// acquire holds the store open until release is called.
func (s *EventStore) acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, event.ErrStoreClosed
	}
	return s.mu.RUnlock, nil
}

func (s *EventStore) eventPrefix(agentID string) []byte {
	return []byte(s.keyPrefix + "events:" + agentID + ":")
}

func (s *EventStore) eventKey(agentID string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(s.eventPrefix(agentID), seq)
}

func (s *EventStore) seqKey(agentID string) []byte {
	return []byte(s.keyPrefix + "seq:" + agentID)
}

// Append persists events atomically, assigning per-agent sequence numbers.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	if len(events) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		sequences := make(map[string]uint64)
		for _, e := range events {
			seq, ok := sequences[e.AgentID]
			if !ok {
				var err error
				if seq, err = s.lastSequence(txn, e.AgentID); err != nil {
					return err
				}
			}

			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			seq++
			e.Sequence = seq
			sequences[e.AgentID] = seq

			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(s.eventKey(e.AgentID, seq), data); err != nil {
				return err
			}
		}

		for agentID, seq := range sequences {
			if err := txn.Set(s.seqKey(agentID), binary.BigEndian.AppendUint64(nil, seq)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EventStore) lastSequence(txn *badger.Txn, agentID string) (uint64, error) {
	item, err := txn.Get(s.seqKey(agentID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			seq = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return seq, err
}

// LoadEvents retrieves all events for an agent in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, agentID string) ([]event.Event, error) {
	return s.LoadEventsFrom(ctx, agentID, 0)
}

// LoadEventsFrom retrieves events with a sequence number of at least fromSeq.
func (s *EventStore) LoadEventsFrom(ctx context.Context, agentID string, fromSeq uint64) ([]event.Event, error) {
	return s.scan(ctx, agentID, fromSeq, event.QueryOptions{})
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, agentID string, opts event.QueryOptions) ([]event.Event, error) {
	events, err := s.scan(ctx, agentID, 0, opts)
	if err != nil {
		return nil, err
	}
	return opts.Page(events), nil
}

func (s *EventStore) scan(ctx context.Context, agentID string, fromSeq uint64, opts event.QueryOptions) ([]event.Event, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	events := make([]event.Event, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   64,
			Prefix:         s.eventPrefix(agentID),
		})
		defer it.Close()

		for it.Seek(s.eventKey(agentID, fromSeq)); it.Valid(); it.Next() {
			var e event.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				logging.Warn().
					Add(logging.Component("badger")).
					Add(logging.AgentID(agentID)).
					Add(logging.ErrorField(err)).
					Msg("skipping malformed event")
				continue
			}
			if opts.Matches(e) {
				events = append(events, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListAgents returns every agent ID with stored events.
func (s *EventStore) ListAgents(ctx context.Context) ([]string, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	prefix := []byte(s.keyPrefix + "seq:")
	var ids []string
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close stops GC and closes the database. Further calls return ErrStoreClosed.
func (s *EventStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.gcStop)
	s.gcWg.Wait()
	return s.db.Close()
}

var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
