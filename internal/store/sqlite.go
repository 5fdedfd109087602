package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	user_message TEXT NOT NULL,
	agent_reply TEXT NOT NULL,
	resolved_city TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);`

// SQLiteStore implements LogStore with the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		logger.Warn("could not enable sqlite WAL mode", "path", path, "error", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Timestamps are stored as fixed-width UTC RFC3339 text so that string
// comparison matches chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func (s *SQLiteStore) Append(ctx context.Context, entry LogEntry) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(timestamp, user_message, agent_reply, resolved_city) VALUES(?,?,?,?)`,
		entry.Timestamp.UTC().Format(sqliteTimeLayout), entry.UserMessage, entry.AgentReply, entry.ResolvedCity)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, user_message, agent_reply, resolved_city FROM conversations ORDER BY id DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]LogEntry, 0)
	for rows.Next() {
		var e LogEntry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.UserMessage, &e.AgentReply, &e.ResolvedCity); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.Timestamp = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE timestamp < ?`, cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge conversations: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
