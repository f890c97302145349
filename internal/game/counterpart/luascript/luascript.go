// Package luascript implements the counterpart contract with a Lua-scripted
// policy. Scripts are deterministic and run in-process, which makes them the
// offline substitute for the remote reasoning service and the vehicle for
// exercising the state machine in tests.
//
// A policy script defines two global functions:
//
//	function propose(round, human_score, ai_score, history)
//	  return points, message
//	end
//
//	function decide(round, proposal, human_score, ai_score, history)
//	  return accept, message
//	end
//
// propose returns the human-side share of the pot. history is an array of
// event tables with round, actor, role, message and either proposal or
// decision fields.
package luascript

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/Shopify/go-lua"

	"github.com/splitpoint/ultimatum/internal/game/counterpart"
	"github.com/splitpoint/ultimatum/internal/game/domain"
)

const (
	proposeFunction = "propose"
	decideFunction  = "decide"
)

// Policy runs counterpart turns through a Lua script.
type Policy struct {
	mu    sync.Mutex // lua.State is not safe for concurrent use
	state *lua.State
}

// New loads the script at path and verifies it defines the policy functions.
func New(path string) (*Policy, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.DoFile(state, path); err != nil {
		return nil, fmt.Errorf("load counterpart script: %w", err)
	}

	for _, name := range []string{proposeFunction, decideFunction} {
		state.Global(name)
		isFunction := state.IsFunction(-1)
		state.Pop(1)
		if !isFunction {
			return nil, fmt.Errorf("counterpart script must define function %q", name)
		}
	}

	return &Policy{state: state}, nil
}

// Act produces the counterpart's move by invoking the scripted policy.
func (p *Policy) Act(_ context.Context, turn counterpart.TurnContext) (counterpart.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch turn.ExpectedRole {
	case domain.RoleProposer:
		return p.callPropose(turn)
	case domain.RoleDecider:
		if turn.PendingProposal == nil {
			return counterpart.Reply{}, fmt.Errorf("decision turn without pending proposal")
		}
		return p.callDecide(turn)
	default:
		return counterpart.Reply{}, fmt.Errorf("unexpected role %q", turn.ExpectedRole)
	}
}

func (p *Policy) callPropose(turn counterpart.TurnContext) (counterpart.Reply, error) {
	p.state.Global(proposeFunction)
	p.state.PushInteger(turn.Round)
	p.state.PushInteger(turn.HumanScore)
	p.state.PushInteger(turn.AIScore)
	p.pushHistory(turn.Ledger)

	if err := p.state.ProtectedCall(4, 2, 0); err != nil {
		return counterpart.Reply{}, fmt.Errorf("run propose: %w", err)
	}
	defer p.state.Pop(2)

	points, ok := p.state.ToInteger(-2)
	if !ok {
		return counterpart.Reply{}, fmt.Errorf("propose must return integer points")
	}
	if points < 0 || points > domain.PotPoints {
		return counterpart.Reply{}, fmt.Errorf("propose returned %d points, want 0..%d", points, domain.PotPoints)
	}
	message, _ := p.state.ToString(-1)

	return counterpart.Reply{Proposal: &points, Message: message}, nil
}

func (p *Policy) callDecide(turn counterpart.TurnContext) (counterpart.Reply, error) {
	p.state.Global(decideFunction)
	p.state.PushInteger(turn.Round)
	p.state.PushInteger(*turn.PendingProposal)
	p.state.PushInteger(turn.HumanScore)
	p.state.PushInteger(turn.AIScore)
	p.pushHistory(turn.Ledger)

	if err := p.state.ProtectedCall(5, 2, 0); err != nil {
		return counterpart.Reply{}, fmt.Errorf("run decide: %w", err)
	}
	defer p.state.Pop(2)

	if p.state.TypeOf(-2) != lua.TypeBoolean {
		return counterpart.Reply{}, fmt.Errorf("decide must return a boolean")
	}
	accept := p.state.ToBoolean(-2)
	message, _ := p.state.ToString(-1)

	return counterpart.Reply{Decision: &accept, Message: message}, nil
}

// pushHistory pushes the ledger as an array of event tables.
func (p *Policy) pushHistory(ledger domain.Ledger) {
	p.state.CreateTable(len(ledger), 0)
	for i, ev := range ledger {
		p.state.CreateTable(0, 5)

		p.state.PushInteger(ev.RoundNum)
		p.state.SetField(-2, "round")
		p.state.PushString(string(ev.Actor))
		p.state.SetField(-2, "actor")
		p.state.PushString(string(ev.Role))
		p.state.SetField(-2, "role")
		p.state.PushString(ev.Message)
		p.state.SetField(-2, "message")
		if ev.Proposal != nil {
			p.state.PushInteger(*ev.Proposal)
			p.state.SetField(-2, "proposal")
		}
		if ev.Decision != nil {
			p.state.PushBoolean(*ev.Decision)
			p.state.SetField(-2, "decision")
		}

		p.state.RawSetInt(-2, i+1)
	}
}
