// Package storage defines persistence contracts for game sessions and the
// leaderboard.
package storage

import (
	"context"
	"errors"

	"github.com/splitpoint/ultimatum/internal/game/domain"
	"github.com/splitpoint/ultimatum/internal/leaderboard"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// SessionStore persists negotiation sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// LeaderboardQuery selects and orders one page of leaderboard entries.
type LeaderboardQuery struct {
	SortBy   leaderboard.SortBy
	Page     int
	PageSize int
	// Filter is an optional AIP-160 expression over entry fields.
	Filter string
}

// LeaderboardStore persists completed-game leaderboard entries.
type LeaderboardStore interface {
	// SubmitEntry records an entry. Resubmitting the same session is a
	// no-op so a finished game lands on the board exactly once.
	SubmitEntry(ctx context.Context, entry leaderboard.Entry) error
	ListEntries(ctx context.Context, query LeaderboardQuery) (leaderboard.Page, error)
}
