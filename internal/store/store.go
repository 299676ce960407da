// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/agent-studio/internal/domain"
)

// Repository persists studio visitors and their draft agent configuration.
// Conversations are never stored.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetDraft returns the user's draft agent, or nil, nil when none was saved.
	GetDraft(ctx context.Context, userID string) (*domain.AgentDraft, error)

	// UpsertDraft saves the user's draft agent.
	UpsertDraft(ctx context.Context, userID string, draft *domain.AgentDraft) error

	// DeleteDraft removes the user's draft agent.
	DeleteDraft(ctx context.Context, userID string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
