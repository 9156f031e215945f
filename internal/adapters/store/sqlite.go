// Package store persists users and chat history in SQLite. It backs the
// UserStore and MessageStore collaborators; nothing in the signaling core
// depends on it beyond those interfaces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/careloop/signaling/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

type Store struct {
	db *sql.DB
}

// Open opens or creates the database file and bootstraps the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL so polling reads don't block message writes.
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY,
			display_name TEXT NOT NULL,
			role         TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id   INTEGER NOT NULL,
			receiver_id INTEGER NOT NULL,
			body        TEXT NOT NULL,
			sent_at     DATETIME NOT NULL,
			is_read     INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_messages_pair
			ON messages (sender_id, receiver_id, sent_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetUser returns the user record or ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	u := &domain.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, role FROM users WHERE id = ?`, int64(id),
	).Scan(&u.DisplayName, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// PutUser inserts or replaces a user record. Used by seeding and tests; user
// management itself lives outside this service.
func (s *Store) PutUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, display_name, role) VALUES (?, ?, ?)`,
		int64(u.ID), u.DisplayName, u.Role)
	if err != nil {
		return fmt.Errorf("put user %d: %w", u.ID, err)
	}
	return nil
}

// Append persists a chat message regardless of whether real-time delivery
// succeeds, and returns its id.
func (s *Store) Append(ctx context.Context, sender, receiver domain.UserID, text string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, body, sent_at) VALUES (?, ?, ?, ?)`,
		int64(sender), int64(receiver), text, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	return res.LastInsertId()
}

// History returns the most recent messages between two users, oldest first.
func (s *Store) History(ctx context.Context, a, b domain.UserID, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, body, sent_at, is_read
		FROM (
			SELECT * FROM messages
			WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
			ORDER BY sent_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY sent_at ASC, id ASC`,
		int64(a), int64(b), int64(b), int64(a), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		var sender, receiver int64
		var read int
		if err := rows.Scan(&m.ID, &sender, &receiver, &m.Text, &m.SentAt, &read); err != nil {
			return nil, err
		}
		m.SenderID = domain.UserID(sender)
		m.ReceiverID = domain.UserID(receiver)
		m.Read = read != 0
		out = append(out, m)
	}
	return out, rows.Err()
}
