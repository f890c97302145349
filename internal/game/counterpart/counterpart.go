// Package counterpart defines the automated-counterpart collaborator contract.
//
// The state machine stays agnostic to how a turn is produced: a remote
// reasoning service, a scripted policy, or a test stub all satisfy the same
// interface. Implementations may fail and must not be assumed deterministic.
package counterpart

import (
	"context"

	"github.com/splitpoint/ultimatum/internal/game/domain"
)

// TurnContext carries everything the counterpart may consider for one turn.
type TurnContext struct {
	Round        int
	ExpectedRole domain.Role
	HumanScore   int
	AIScore      int
	// PendingProposal is the human-side points awaiting a decision.
	// Set only when ExpectedRole is RoleDecider.
	PendingProposal *int
	// Ledger is the full event history up to this turn.
	Ledger domain.Ledger
}

// Reply is the counterpart's move. Exactly one of Proposal and Decision is
// set, matching the expected role.
type Reply struct {
	Proposal *int
	Decision *bool
	Message  string
}

// Counterpart produces the automated side's move for a turn.
type Counterpart interface {
	Act(ctx context.Context, turn TurnContext) (Reply, error)
}
