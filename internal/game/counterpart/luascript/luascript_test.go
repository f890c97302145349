package luascript

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/splitpoint/ultimatum/internal/game/counterpart"
	"github.com/splitpoint/ultimatum/internal/game/domain"
)

const fairPolicy = `
function propose(round, human_score, ai_score, history)
  return 5, "splitting it evenly"
end

function decide(round, proposal, human_score, ai_score, history)
  return proposal >= 3, "taking anything reasonable"
end
`

func writeScript(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.lua")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestNewRejectsMissingFunctions(t *testing.T) {
	path := writeScript(t, `function propose(round) return 5, "" end`)
	if _, err := New(path); err == nil {
		t.Fatal("expected error for script without decide")
	}
}

func TestNewRejectsMissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "absent.lua")); err == nil {
		t.Fatal("expected error for missing script")
	}
}

func TestActPropose(t *testing.T) {
	policy, err := New(writeScript(t, fairPolicy))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	reply, err := policy.Act(context.Background(), counterpart.TurnContext{
		Round:        2,
		ExpectedRole: domain.RoleProposer,
	})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if reply.Proposal == nil || *reply.Proposal != 5 {
		t.Fatalf("proposal = %+v, want 5", reply.Proposal)
	}
	if reply.Message != "splitting it evenly" {
		t.Fatalf("message = %q", reply.Message)
	}
}

func TestActDecide(t *testing.T) {
	policy, err := New(writeScript(t, fairPolicy))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	proposal := 7
	reply, err := policy.Act(context.Background(), counterpart.TurnContext{
		Round:           1,
		ExpectedRole:    domain.RoleDecider,
		PendingProposal: &proposal,
	})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if reply.Decision == nil || !*reply.Decision {
		t.Fatalf("expected accept for proposal 7, got %+v", reply)
	}

	lowball := 1
	reply, err = policy.Act(context.Background(), counterpart.TurnContext{
		Round:           1,
		ExpectedRole:    domain.RoleDecider,
		PendingProposal: &lowball,
	})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if reply.Decision == nil || *reply.Decision {
		t.Fatalf("expected reject for proposal 1, got %+v", reply)
	}
}

func TestActDecideRequiresPendingProposal(t *testing.T) {
	policy, err := New(writeScript(t, fairPolicy))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	_, err = policy.Act(context.Background(), counterpart.TurnContext{
		Round:        1,
		ExpectedRole: domain.RoleDecider,
	})
	if err == nil {
		t.Fatal("expected error without pending proposal")
	}
}

func TestActSeesHistory(t *testing.T) {
	script := `
function propose(round, human_score, ai_score, history)
  local accepted = 0
  for _, ev in ipairs(history) do
    if ev.decision == true then accepted = accepted + 1 end
  end
  return accepted, "seen " .. #history .. " events"
end

function decide(round, proposal, human_score, ai_score, history)
  return false, ""
end
`
	policy, err := New(writeScript(t, script))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	points := 6
	accept := true
	reply, err := policy.Act(context.Background(), counterpart.TurnContext{
		Round:        2,
		ExpectedRole: domain.RoleProposer,
		Ledger: domain.Ledger{
			{RoundNum: 1, Actor: domain.ActorHuman, Role: domain.RoleProposer, Proposal: &points},
			{RoundNum: 1, Actor: domain.ActorAI, Role: domain.RoleDecider, Decision: &accept},
		},
	})
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if reply.Proposal == nil || *reply.Proposal != 1 {
		t.Fatalf("expected script to count 1 accepted decision, got %+v", reply.Proposal)
	}
	if reply.Message != "seen 2 events" {
		t.Fatalf("message = %q", reply.Message)
	}
}

func TestActRejectsOutOfRangeScriptProposal(t *testing.T) {
	script := `
function propose(round, human_score, ai_score, history)
  return 99, ""
end

function decide(round, proposal, human_score, ai_score, history)
  return true, ""
end
`
	policy, err := New(writeScript(t, script))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}
	_, err = policy.Act(context.Background(), counterpart.TurnContext{
		Round:        2,
		ExpectedRole: domain.RoleProposer,
	})
	if err == nil {
		t.Fatal("expected error for out-of-range scripted proposal")
	}
}
