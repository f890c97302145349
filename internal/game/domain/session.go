// Package domain models the ultimatum game session state machine.
//
// A session runs a fixed number of proposal/decision rounds between the human
// participant and the automated counterpart. The proposer role alternates by
// round parity, every recorded event is immutable, and each transition either
// fully applies (ledger append, score update, phase advance) or leaves the
// session untouched.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperr "github.com/splitpoint/ultimatum/internal/platform/errors"
	"github.com/splitpoint/ultimatum/internal/platform/id"
)

const (
	// TotalRounds is the fixed number of rounds per session.
	TotalRounds = 6
	// PotPoints is the number of points split in each round.
	PotPoints = 10
	// MaxMessageLength caps free-text annotations on events.
	MaxMessageLength = 256
)

// Winner identifies the party that won a completed session.
type Winner string

const (
	// WinnerHuman indicates the human finished with the higher score.
	WinnerHuman Winner = "human"
	// WinnerAI indicates the counterpart finished with the higher score.
	WinnerAI Winner = "ai"
	// WinnerTie indicates equal final scores.
	WinnerTie Winner = "tie"
)

// Phase describes what action a session currently admits.
type Phase string

const (
	// PhaseAwaitingProposal means the scheduled proposer must act.
	PhaseAwaitingProposal Phase = "awaiting_proposal"
	// PhaseAwaitingDecision means the scheduled decider must act.
	PhaseAwaitingDecision Phase = "awaiting_decision"
	// PhaseTerminal means the final round has resolved.
	PhaseTerminal Phase = "terminal"
)

// Session is one game between the human participant and the counterpart.
type Session struct {
	ID           string
	PlayerName   string
	CurrentRound int
	HumanScore   int
	AIScore      int
	GameOver     bool
	Winner       Winner // empty until GameOver
	Ledger       Ledger
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time // nil until the terminal transition
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	PlayerName string
}

// CreateSession creates a new session in the first round's awaiting-proposal
// phase with a generated ID and timestamps.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:           sessionID,
		PlayerName:   strings.TrimSpace(input.PlayerName),
		CurrentRound: 1,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// Phase derives the session's current phase from the ledger.
func (s *Session) Phase() Phase {
	if s.GameOver {
		return PhaseTerminal
	}
	if _, ok := s.Ledger.EventFor(s.CurrentRound, RoleProposer); ok {
		return PhaseAwaitingDecision
	}
	return PhaseAwaitingProposal
}

// ExpectedActor returns the actor scheduled to act in the current phase.
// The second result is false once the session is over.
func (s *Session) ExpectedActor() (Actor, bool) {
	switch s.Phase() {
	case PhaseAwaitingProposal:
		return ProposerFor(s.CurrentRound), true
	case PhaseAwaitingDecision:
		return DeciderFor(s.CurrentRound), true
	default:
		return "", false
	}
}

// PendingProposal returns the current round's proposal while a decision is
// outstanding.
func (s *Session) PendingProposal() (int, bool) {
	if s.Phase() != PhaseAwaitingDecision {
		return 0, false
	}
	ev, ok := s.Ledger.EventFor(s.CurrentRound, RoleProposer)
	if !ok || ev.Proposal == nil {
		return 0, false
	}
	return *ev.Proposal, true
}

// Propose records a split proposal by actor for the current round. The points
// are always expressed as the human side's share of the pot, regardless of
// who proposes.
func (s *Session) Propose(actor Actor, points int, message string, now time.Time) error {
	if s.GameOver {
		return apperr.New(apperr.CodeInvalidTurn, "game is already over")
	}
	if err := validateMessage(message); err != nil {
		return err
	}
	if points < 0 || points > PotPoints {
		return apperr.WithMetadata(apperr.CodeInvalidProposal, "proposal points out of range", map[string]string{
			"points": strconv.Itoa(points),
			"max":    strconv.Itoa(PotPoints),
		})
	}

	ev := RoundEvent{
		RoundNum:  s.CurrentRound,
		Actor:     actor,
		Role:      RoleProposer,
		Proposal:  &points,
		Message:   message,
		CreatedAt: now.UTC(),
	}
	next, _, err := s.Ledger.Append(ev, s.CurrentRound)
	if err != nil {
		return err
	}

	s.Ledger = next
	s.UpdatedAt = now.UTC()
	return nil
}

// Decide records the current round's accept/reject decision by actor and
// resolves the round: accepted proposals credit both scores, rejections credit
// neither, and either way the session advances. Resolving the final round
// ends the game and assigns the winner.
func (s *Session) Decide(actor Actor, accept bool, message string, now time.Time) (RoundOutcome, error) {
	if s.GameOver {
		return RoundOutcome{}, apperr.New(apperr.CodeInvalidTurn, "game is already over")
	}
	if err := validateMessage(message); err != nil {
		return RoundOutcome{}, err
	}
	if s.Phase() == PhaseAwaitingProposal {
		return RoundOutcome{}, apperr.New(apperr.CodeInvalidTurn, "no proposal to decide on")
	}

	ev := RoundEvent{
		RoundNum:  s.CurrentRound,
		Actor:     actor,
		Role:      RoleDecider,
		Decision:  &accept,
		Message:   message,
		CreatedAt: now.UTC(),
	}
	next, outcome, err := s.Ledger.Append(ev, s.CurrentRound)
	if err != nil {
		return RoundOutcome{}, err
	}
	if outcome == nil {
		return RoundOutcome{}, apperr.New(apperr.CodeUnknown, "decision recorded without resolvable outcome")
	}

	s.Ledger = next
	s.HumanScore += outcome.HumanPoints
	s.AIScore += outcome.AIPoints
	s.UpdatedAt = now.UTC()

	if s.CurrentRound >= TotalRounds {
		s.GameOver = true
		s.Winner = WinnerFromScores(s.HumanScore, s.AIScore)
		completedAt := now.UTC()
		s.CompletedAt = &completedAt
	} else {
		s.CurrentRound++
	}
	return *outcome, nil
}

// Rename sets the player name. Renaming is allowed at any time, including
// after the game is over.
func (s *Session) Rename(name string, now time.Time) {
	s.PlayerName = strings.TrimSpace(name)
	s.UpdatedAt = now.UTC()
}

// Clone returns an independent copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Ledger = s.Ledger.Clone()
	if s.CompletedAt != nil {
		completedAt := *s.CompletedAt
		out.CompletedAt = &completedAt
	}
	return out
}

// WinnerFromScores compares final scores. It is a pure function of the
// totals, independent of rejection history.
func WinnerFromScores(humanScore, aiScore int) Winner {
	switch {
	case humanScore > aiScore:
		return WinnerHuman
	case aiScore > humanScore:
		return WinnerAI
	default:
		return WinnerTie
	}
}

// BigWin reports whether a human result is strong enough to prompt for a
// leaderboard name. This is a deliberately looser heuristic than Winner and
// is evaluated by the orchestration layer only.
func BigWin(humanScore, aiScore int) bool {
	return humanScore > 30 || humanScore-aiScore > 10
}

func validateMessage(message string) error {
	if len(message) > MaxMessageLength {
		return apperr.WithMetadata(apperr.CodeMessageTooLong, "message exceeds length cap", map[string]string{
			"length": strconv.Itoa(len(message)),
			"max":    strconv.Itoa(MaxMessageLength),
		})
	}
	return nil
}
