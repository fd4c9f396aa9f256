package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// Store owns the pool shared by the repositories.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore wraps an existing pool. An empty schema means "public".
func NewStore(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{pool: pool, schema: schema}
}

// Open creates a pool from cfg, wraps it and migrates the schema.
func Open(ctx context.Context, cfg Config, opts ...ConfigOption) (*Store, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := NewStore(pool, cfg.Schema)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// table returns the quoted, schema-qualified name of a table.
func (s *Store) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// Migrate creates the schema and tables if they don't exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{s.schema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			version BIGINT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("agents")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS agents_conversation_idx ON %s (conversation_id)", s.table("agents")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			status TEXT NOT NULL,
			version BIGINT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("plans")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS plans_agent_idx ON %s (agent_id, created_at)", s.table("plans")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("evaluations")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS evaluations_agent_idx ON %s (agent_id, created_at DESC)", s.table("evaluations")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			evaluation_id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table("improvements")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS improvements_evaluation_idx ON %s (evaluation_id, created_at DESC)", s.table("improvements")),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Agents returns the agent repository.
func (s *Store) Agents() *AgentRepository {
	return &AgentRepository{store: s}
}

// Plans returns the plan repository.
func (s *Store) Plans() *PlanRepository {
	return &PlanRepository{store: s}
}

// Evaluations returns the evaluation repository.
func (s *Store) Evaluations() *EvaluationRepository {
	return &EvaluationRepository{store: s}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type writeOutcome int

const (
	written writeOutcome = iota
	conflict
	missing
)

// versionedWrite inserts when previous is zero and otherwise updates the row
// whose version equals previous.
func (s *Store) versionedWrite(ctx context.Context, table, id string, previous int64,
	insert string, insertArgs []any, update string, updateArgs []any,
) (writeOutcome, error) {
	if previous == 0 {
		if _, err := s.pool.Exec(ctx, insert, insertArgs...); err != nil {
			if isUniqueViolation(err) {
				return conflict, nil
			}
			return written, err
		}
		return written, nil
	}

	tag, err := s.pool.Exec(ctx, update, updateArgs...)
	if err != nil {
		return written, err
	}
	if tag.RowsAffected() == 1 {
		return written, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", s.table(table)), id,
	).Scan(&exists)
	if err != nil {
		return written, err
	}
	if !exists {
		return missing, nil
	}
	return conflict, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
