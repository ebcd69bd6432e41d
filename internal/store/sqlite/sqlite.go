package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirebot/internal/store"
)

// Schema is applied by New. Every statement is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS moderation_actions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	room_id    TEXT NOT NULL,
	command    TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	points     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderation_actions_user ON moderation_actions (user_id, created_at);

CREATE TABLE IF NOT EXISTS seen (
	user_id     TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	seen_at     DATETIME NOT NULL
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== ActionStore implementation ====

// RecordAction persists a moderation action.
func (s *SQLiteStore) RecordAction(ctx context.Context, a *store.Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO moderation_actions (id, user_id, room_id, command, reason, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, a.ID, a.UserID, a.RoomID, a.Command, a.Reason, a.Points, a.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}
	return nil
}

// ListActions returns the newest actions for userID.
func (s *SQLiteStore) ListActions(ctx context.Context, userID string, limit int) ([]*store.Action, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, room_id, command, reason, points, created_at
		FROM moderation_actions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query moderation actions: %w", err)
	}
	defer rows.Close()

	actions := make([]*store.Action, 0)
	for rows.Next() {
		var a store.Action
		if err := rows.Scan(&a.ID, &a.UserID, &a.RoomID, &a.Command, &a.Reason, &a.Points, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation actions: %w", err)
	}
	return actions, nil
}

// ==== SeenStore implementation ====

// SaveSeen upserts a last-seen record.
func (s *SQLiteStore) SaveSeen(ctx context.Context, seen *store.Seen) error {
	query := `
		INSERT INTO seen (user_id, description, seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			description = excluded.description,
			seen_at     = excluded.seen_at
		WHERE excluded.seen_at >= seen.seen_at
	`
	if _, err := s.db.ExecContext(ctx, query, seen.UserID, seen.Description, seen.SeenAt.UTC()); err != nil {
		return fmt.Errorf("upsert seen: %w", err)
	}
	return nil
}

// GetSeen retrieves the last-seen record for userID.
func (s *SQLiteStore) GetSeen(ctx context.Context, userID string) (*store.Seen, error) {
	query := `
		SELECT user_id, description, seen_at
		FROM seen
		WHERE user_id = ?
	`
	var seen store.Seen
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&seen.UserID, &seen.Description, &seen.SeenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("seen %s: %w", userID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query seen: %w", err)
	}
	return &seen, nil
}
