package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup has no row.
var ErrNotFound = errors.New("not found")

// Action is a journaled automated moderation action.
type Action struct {
	ID        string // UUID
	UserID    string
	RoomID    string
	Command   string
	Reason    string
	Points    int
	CreatedAt time.Time
}

// Seen is the last observed activity of a user.
type Seen struct {
	UserID      string
	Description string
	SeenAt      time.Time
}

// ActionStore handles the moderation journal.
type ActionStore interface {
	// RecordAction persists an action. An empty ID is filled in.
	RecordAction(ctx context.Context, a *Action) error

	// ListActions returns the newest actions against userID, newest first.
	ListActions(ctx context.Context, userID string, limit int) ([]*Action, error)
}

// SeenStore handles last-seen records.
type SeenStore interface {
	// SaveSeen upserts the record for s.UserID.
	SaveSeen(ctx context.Context, s *Seen) error

	// GetSeen returns ErrNotFound when the user was never recorded.
	GetSeen(ctx context.Context, userID string) (*Seen, error)
}

// Store combines every persistence interface.
type Store interface {
	ActionStore
	SeenStore
	Close() error
}
