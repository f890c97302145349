package domain

import (
	"strconv"
	"time"

	apperr "github.com/splitpoint/ultimatum/internal/platform/errors"
)

// RoundEvent captures one immutable proposal or decision record.
// Exactly one of Proposal and Decision is set, matching the event's role.
type RoundEvent struct {
	RoundNum  int
	Actor     Actor
	Role      Role
	Proposal  *int  // points claimed for the human side, proposer events only
	Decision  *bool // true = accept, decider events only
	Message   string
	CreatedAt time.Time
}

// RoundOutcome is the derived result of a fully recorded round.
type RoundOutcome struct {
	Round       int
	Proposal    int
	Accepted    bool
	HumanPoints int
	AIPoints    int
}

// Ledger is the append-only, chronologically ordered event record of a session.
type Ledger []RoundEvent

// EventFor returns the event recorded for the given round and role, if any.
func (l Ledger) EventFor(round int, role Role) (RoundEvent, bool) {
	for _, ev := range l {
		if ev.RoundNum == round && ev.Role == role {
			return ev, true
		}
	}
	return RoundEvent{}, false
}

// Append validates ev against the current round and the role schedule and
// returns the extended ledger. When the appended event completes a round it
// also returns the round's derived outcome. The receiver is never mutated.
func (l Ledger) Append(ev RoundEvent, currentRound int) (Ledger, *RoundOutcome, error) {
	if ev.RoundNum != currentRound {
		return nil, nil, apperr.WithMetadata(apperr.CodeInvalidTurn, "event round does not match current round", map[string]string{
			"event_round":   strconv.Itoa(ev.RoundNum),
			"current_round": strconv.Itoa(currentRound),
		})
	}
	if !ev.Actor.IsValid() {
		return nil, nil, apperr.New(apperr.CodeInvalidRole, "unknown actor")
	}
	if RoleFor(ev.RoundNum, ev.Actor) != ev.Role {
		return nil, nil, apperr.WithMetadata(apperr.CodeInvalidRole, "actor is not scheduled for this role", map[string]string{
			"round": strconv.Itoa(ev.RoundNum),
			"actor": string(ev.Actor),
			"role":  string(ev.Role),
		})
	}
	switch ev.Role {
	case RoleProposer:
		if ev.Proposal == nil || ev.Decision != nil {
			return nil, nil, apperr.New(apperr.CodeInvalidRole, "proposer event requires a proposal and no decision")
		}
	case RoleDecider:
		if ev.Decision == nil || ev.Proposal != nil {
			return nil, nil, apperr.New(apperr.CodeInvalidRole, "decider event requires a decision and no proposal")
		}
	default:
		return nil, nil, apperr.New(apperr.CodeInvalidRole, "unknown role")
	}
	if _, exists := l.EventFor(ev.RoundNum, ev.Role); exists {
		return nil, nil, apperr.WithMetadata(apperr.CodeDuplicateEvent, "event already recorded for round and role", map[string]string{
			"round": strconv.Itoa(ev.RoundNum),
			"role":  string(ev.Role),
		})
	}

	next := make(Ledger, len(l), len(l)+1)
	copy(next, l)
	next = append(next, ev)

	outcome, ok := next.OutcomeFor(ev.RoundNum)
	if !ok {
		return next, nil, nil
	}
	return next, &outcome, nil
}

// OutcomeFor derives the round outcome once both events are present.
func (l Ledger) OutcomeFor(round int) (RoundOutcome, bool) {
	proposal, ok := l.EventFor(round, RoleProposer)
	if !ok || proposal.Proposal == nil {
		return RoundOutcome{}, false
	}
	decision, ok := l.EventFor(round, RoleDecider)
	if !ok || decision.Decision == nil {
		return RoundOutcome{}, false
	}

	outcome := RoundOutcome{
		Round:    round,
		Proposal: *proposal.Proposal,
		Accepted: *decision.Decision,
	}
	if outcome.Accepted {
		outcome.HumanPoints = outcome.Proposal
		outcome.AIPoints = PotPoints - outcome.Proposal
	}
	return outcome, true
}

// Clone returns an independent copy of the ledger.
func (l Ledger) Clone() Ledger {
	if l == nil {
		return nil
	}
	out := make(Ledger, len(l))
	for i, ev := range l {
		if ev.Proposal != nil {
			p := *ev.Proposal
			ev.Proposal = &p
		}
		if ev.Decision != nil {
			d := *ev.Decision
			ev.Decision = &d
		}
		out[i] = ev
	}
	return out
}
