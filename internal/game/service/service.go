// Package service coordinates session state transitions, the automated
// counterpart, and leaderboard submission.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/splitpoint/ultimatum/internal/game/counterpart"
	"github.com/splitpoint/ultimatum/internal/game/domain"
	"github.com/splitpoint/ultimatum/internal/leaderboard"
	"github.com/splitpoint/ultimatum/internal/leaderboard/filter"
	apperr "github.com/splitpoint/ultimatum/internal/platform/errors"
	"github.com/splitpoint/ultimatum/internal/platform/id"
	"github.com/splitpoint/ultimatum/internal/platform/pagination"
	"github.com/splitpoint/ultimatum/internal/storage"
)

const (
	// DefaultPageSize is the leaderboard page size when none is requested.
	DefaultPageSize = 10
	// MaxPageSize caps requested leaderboard page sizes.
	MaxPageSize = 100
)

// Service exposes the game's operations over the stores and counterpart.
type Service struct {
	sessions    storage.SessionStore
	board       storage.LeaderboardStore
	counterpart counterpart.Counterpart

	now    func() time.Time
	newID  func() (string, error)
	tracer trace.Tracer

	// locksMu guards locks; each session gets its own mutex so turns on
	// one session serialize without blocking other sessions.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option customizes service construction, primarily for tests.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates a game service over the provided collaborators.
func New(sessions storage.SessionStore, board storage.LeaderboardStore, cp counterpart.Counterpart, opts ...Option) *Service {
	s := &Service{
		sessions:    sessions,
		board:       board,
		counterpart: cp,
		now:         time.Now,
		newID:       id.NewID,
		tracer:      otel.Tracer("github.com/splitpoint/ultimatum/internal/game/service"),
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// CreateSession starts a new game session.
func (s *Service) CreateSession(ctx context.Context, input domain.CreateSessionInput) (domain.Session, error) {
	session, err := domain.CreateSession(input, s.now, s.newID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// GetSession returns the current session state.
func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, apperr.New(apperr.CodeSessionNotFound, "session not found")
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// RenameSession sets the player name. Renaming a completed session with a
// non-blank name submits the result to the leaderboard.
func (s *Service) RenameSession(ctx context.Context, sessionID, name string) (domain.Session, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	session.Rename(name, s.now())
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}

	if session.GameOver && strings.TrimSpace(session.PlayerName) != "" {
		if err := s.submitResult(ctx, session); err != nil {
			return domain.Session{}, err
		}
	}
	return session, nil
}

// SubmitProposal records a proposal from the given actor.
func (s *Service) SubmitProposal(ctx context.Context, sessionID string, actor domain.Actor, points int, message string) (domain.Session, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := session.Propose(actor, points, message, s.now()); err != nil {
		// A replayed event is a no-op conflict; the caller still gets
		// the unchanged state alongside the duplicate-event error.
		if apperr.CodeOf(err) == apperr.CodeDuplicateEvent {
			return session, err
		}
		return domain.Session{}, err
	}
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// SubmitDecision records a decision from the given actor and resolves the
// round. Completing the final round on a named session submits the result to
// the leaderboard.
func (s *Service) SubmitDecision(ctx context.Context, sessionID string, actor domain.Actor, accept bool, message string) (domain.Session, domain.RoundOutcome, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	return s.decideLocked(ctx, sessionID, actor, accept, message)
}

func (s *Service) decideLocked(ctx context.Context, sessionID string, actor domain.Actor, accept bool, message string) (domain.Session, domain.RoundOutcome, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, domain.RoundOutcome{}, err
	}
	outcome, err := session.Decide(actor, accept, message, s.now())
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeDuplicateEvent {
			return session, domain.RoundOutcome{}, err
		}
		return domain.Session{}, domain.RoundOutcome{}, err
	}
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return domain.Session{}, domain.RoundOutcome{}, fmt.Errorf("store session: %w", err)
	}

	if session.GameOver && strings.TrimSpace(session.PlayerName) != "" {
		if err := s.submitResult(ctx, session); err != nil {
			return domain.Session{}, domain.RoundOutcome{}, err
		}
	}
	return session, outcome, nil
}

// RunAutomatedTurn asks the counterpart for its move and applies it. It
// fails with an invalid-turn error when it is not the counterpart's turn.
func (s *Service) RunAutomatedTurn(ctx context.Context, sessionID string) (domain.Session, error) {
	mu := s.sessionLock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	actor, ok := session.ExpectedActor()
	if !ok {
		return domain.Session{}, apperr.New(apperr.CodeInvalidTurn, "game is over")
	}
	if actor != domain.ActorAI {
		return domain.Session{}, apperr.New(apperr.CodeInvalidTurn, "not the counterpart's turn")
	}

	turn := counterpart.TurnContext{
		Round:        session.CurrentRound,
		ExpectedRole: domain.RoleFor(session.CurrentRound, domain.ActorAI),
		HumanScore:   session.HumanScore,
		AIScore:      session.AIScore,
		Ledger:       session.Ledger.Clone(),
	}
	if pending, ok := session.PendingProposal(); ok {
		turn.PendingProposal = &pending
	}

	reply, err := s.invokeCounterpart(ctx, session.ID, turn)
	if err != nil {
		return domain.Session{}, apperr.Wrap(apperr.CodeCounterpartUnavailable, "counterpart turn failed", err)
	}

	switch turn.ExpectedRole {
	case domain.RoleProposer:
		if reply.Proposal == nil {
			return domain.Session{}, apperr.New(apperr.CodeCounterpartUnavailable, "counterpart returned no proposal")
		}
		// Reply proposals are already in human-side points, matching
		// the ledger convention.
		if err := session.Propose(domain.ActorAI, *reply.Proposal, reply.Message, s.now()); err != nil {
			return domain.Session{}, err
		}
		if err := s.sessions.UpdateSession(ctx, session); err != nil {
			return domain.Session{}, fmt.Errorf("store session: %w", err)
		}
		return session, nil
	case domain.RoleDecider:
		if reply.Decision == nil {
			return domain.Session{}, apperr.New(apperr.CodeCounterpartUnavailable, "counterpart returned no decision")
		}
		updated, _, err := s.decideLocked(ctx, sessionID, domain.ActorAI, *reply.Decision, reply.Message)
		if err != nil {
			return domain.Session{}, err
		}
		return updated, nil
	default:
		return domain.Session{}, apperr.New(apperr.CodeInvalidRole, "unknown counterpart role")
	}
}

func (s *Service) invokeCounterpart(ctx context.Context, sessionID string, turn counterpart.TurnContext) (counterpart.Reply, error) {
	ctx, span := s.tracer.Start(ctx, "counterpart.Act",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("round", turn.Round),
			attribute.String("role", string(turn.ExpectedRole)),
		))
	defer span.End()

	reply, err := s.counterpart.Act(ctx, turn)
	if err != nil {
		span.RecordError(err)
		return counterpart.Reply{}, err
	}
	return reply, nil
}

func (s *Service) submitResult(ctx context.Context, session domain.Session) error {
	completedAt := session.UpdatedAt
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}
	entry := leaderboard.Entry{
		SessionID:  session.ID,
		PlayerName: session.PlayerName,
		HumanScore: session.HumanScore,
		AIScore:    session.AIScore,
		CreatedAt:  completedAt,
	}
	if err := s.board.SubmitEntry(ctx, entry); err != nil {
		return fmt.Errorf("submit leaderboard entry: %w", err)
	}
	log.Printf("session %s submitted to leaderboard as %q (%d/%d)",
		session.ID, session.PlayerName, session.HumanScore, session.AIScore)
	return nil
}

// LeaderboardQuery is the normalized input for Leaderboard.
type LeaderboardQuery struct {
	SortBy   string
	Page     int
	PageSize int
	Filter   string
}

// Leaderboard returns one ranked, paginated page of completed games.
func (s *Service) Leaderboard(ctx context.Context, query LeaderboardQuery) (leaderboard.Page, error) {
	sortBy, err := pagination.NormalizeSortBy(query.SortBy, pagination.SortByConfig{
		Default: string(leaderboard.SortByScore),
		Allowed: []string{string(leaderboard.SortByScore), string(leaderboard.SortByDifference)},
	})
	if err != nil {
		return leaderboard.Page{}, apperr.Wrap(apperr.CodeInvalidSort, "invalid sort_by", err)
	}
	if _, err := filter.ParseEntryFilter(query.Filter); err != nil {
		return leaderboard.Page{}, apperr.Wrap(apperr.CodeInvalidFilter, "invalid filter", err)
	}

	page, err := s.board.ListEntries(ctx, storage.LeaderboardQuery{
		SortBy:   leaderboard.SortBy(sortBy),
		Page:     pagination.ClampPage(query.Page),
		PageSize: pagination.ClampPageSize(query.PageSize, pagination.PageSizeConfig{Default: DefaultPageSize, Max: MaxPageSize}),
		Filter:   query.Filter,
	})
	if err != nil {
		return leaderboard.Page{}, fmt.Errorf("list leaderboard: %w", err)
	}
	return page, nil
}
