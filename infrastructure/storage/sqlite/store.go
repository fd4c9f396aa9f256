package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Store owns the database handle shared by the repositories.
type Store struct {
	db *sql.DB
}

// New opens a SQLite store with the given configuration.
func New(cfg Config, opts ...Option) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if cfg.AutoMigrate {
		if err := s.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewFromDB creates a store from an existing connection and migrates it.
func NewFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they don't exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_conversation ON agents(conversation_id);

		CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			version INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_plans_agent ON plans(agent_id, created_at);

		CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			overall_score REAL NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_evaluations_agent ON evaluations(agent_id, created_at);

		CREATE TABLE IF NOT EXISTS improvements (
			id TEXT PRIMARY KEY,
			evaluation_id TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_improvements_evaluation ON improvements(evaluation_id, created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// Agents returns the agent repository.
func (s *Store) Agents() *AgentRepository {
	return &AgentRepository{db: s.db}
}

// Plans returns the plan repository.
func (s *Store) Plans() *PlanRepository {
	return &PlanRepository{db: s.db}
}

// Evaluations returns the evaluation repository.
func (s *Store) Evaluations() *EvaluationRepository {
	return &EvaluationRepository{db: s.db}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// writeOutcome is the result of a versioned write.
type writeOutcome int

const (
	written writeOutcome = iota
	conflict
	missing
)

// versionedWrite inserts when previous is zero and otherwise updates the row
// whose version equals previous.
type versionedWrite struct {
	table      string
	id         string
	previous   int64
	insert     string
	insertArgs []any
	update     string
	updateArgs []any
}

func (w versionedWrite) exec(ctx context.Context, db *sql.DB) (writeOutcome, error) {
	if w.previous == 0 {
		if _, err := db.ExecContext(ctx, w.insert, w.insertArgs...); err != nil {
			if isUniqueViolation(err) {
				return conflict, nil
			}
			return written, err
		}
		return written, nil
	}

	res, err := db.ExecContext(ctx, w.update, w.updateArgs...)
	if err != nil {
		return written, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return written, err
	}
	if n == 1 {
		return written, nil
	}

	var one int
	// #nosec G202 -- table names are package constants
	err = db.QueryRowContext(ctx, "SELECT 1 FROM "+w.table+" WHERE id = ?", w.id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return missing, nil
	}
	if err != nil {
		return written, err
	}
	return conflict, nil
}

// isUniqueViolation checks if the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
