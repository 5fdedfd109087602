package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		user_message TEXT NOT NULL,
		agent_reply TEXT NOT NULL,
		resolved_city TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations (timestamp)`,
}

// PostgresStore implements LogStore on PostgreSQL.
type PostgresStore struct {
	db    DBTX
	close func()
}

// NewPostgresStore wraps an existing connection. Close is a no-op; the
// caller owns db.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the conversations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply postgres schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry LogEntry) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO conversations (timestamp, user_message, agent_reply, resolved_city)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		entry.Timestamp.UTC(), entry.UserMessage, entry.AgentReply, entry.ResolvedCity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, timestamp, user_message, agent_reply, resolved_city
		 FROM conversations ORDER BY id DESC LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserMessage, &e.AgentReply, &e.ResolvedCity); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
