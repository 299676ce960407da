package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashureev/agent-studio/internal/domain"
	"github.com/ashureev/agent-studio/internal/shared"
)

const (
	writeRetries   = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	draftMu sync.Mutex // serializes draft writes to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS agent_drafts (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		system_instruction TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		capabilities_json TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var lastSeen, createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	err := shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, user.LastSeenAt.Unix(),
			user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetDraft returns the user's saved draft agent.
func (s *SQLiteStore) GetDraft(ctx context.Context, userID string) (*domain.AgentDraft, error) {
	query := `
		SELECT name, description, system_instruction, model, capabilities_json, updated_at
		FROM agent_drafts WHERE user_id = ?`

	var draft domain.AgentDraft
	var capsJSON string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&draft.Name, &draft.Description, &draft.SystemInstruction,
		&draft.Model, &capsJSON, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft row: %w", err)
	}

	if err := json.Unmarshal([]byte(capsJSON), &draft.Capabilities); err != nil {
		return nil, fmt.Errorf("decode draft capabilities: %w", err)
	}
	draft.UpdatedAt = time.Unix(updatedAt, 0)
	return &draft, nil
}

// UpsertDraft saves the user's draft agent, stamping UpdatedAt.
func (s *SQLiteStore) UpsertDraft(ctx context.Context, userID string, draft *domain.AgentDraft) error {
	capsJSON, err := json.Marshal(draft.Capabilities)
	if err != nil {
		return fmt.Errorf("encode draft capabilities: %w", err)
	}

	query := `
		INSERT INTO agent_drafts (
			user_id, name, description, system_instruction, model, capabilities_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			system_instruction = excluded.system_instruction,
			model = excluded.model,
			capabilities_json = excluded.capabilities_json,
			updated_at = excluded.updated_at`

	now := time.Now()

	s.draftMu.Lock()
	defer s.draftMu.Unlock()

	err = shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			userID, draft.Name, draft.Description, draft.SystemInstruction,
			draft.Model, string(capsJSON), now.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert draft for %s: %w", userID, err)
	}
	draft.UpdatedAt = time.Unix(now.Unix(), 0)
	return nil
}

// DeleteDraft removes the user's draft agent.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, userID string) error {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()

	err := shared.RetryOnConflict(ctx, writeRetries, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM agent_drafts WHERE user_id = ?`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete draft for %s: %w", userID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ Repository = (*SQLiteStore)(nil)
