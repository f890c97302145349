package domain

// Actor identifies which party performed a game action.
type Actor string

const (
	// ActorHuman is the human participant.
	ActorHuman Actor = "human"
	// ActorAI is the automated counterpart.
	ActorAI Actor = "ai"
)

// Role identifies the function an actor performs within a round.
type Role string

const (
	// RoleProposer submits the split proposal for a round.
	RoleProposer Role = "proposer"
	// RoleDecider accepts or rejects the round's proposal.
	RoleDecider Role = "decider"
)

// IsValid reports whether the actor is a known party.
func (a Actor) IsValid() bool {
	return a == ActorHuman || a == ActorAI
}

// Opponent returns the other party.
func (a Actor) Opponent() Actor {
	if a == ActorHuman {
		return ActorAI
	}
	return ActorHuman
}

// ProposerFor returns the actor scheduled to propose in the given round.
// The schedule is fixed by round parity: the human proposes in odd rounds.
func ProposerFor(round int) Actor {
	if round%2 == 1 {
		return ActorHuman
	}
	return ActorAI
}

// DeciderFor returns the actor scheduled to decide in the given round.
func DeciderFor(round int) Actor {
	return ProposerFor(round).Opponent()
}

// RoleFor returns the role the schedule assigns to actor in the given round.
func RoleFor(round int, actor Actor) Role {
	if ProposerFor(round) == actor {
		return RoleProposer
	}
	return RoleDecider
}
